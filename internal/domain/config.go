package domain

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Transcoder   TranscoderConfig   `mapstructure:"transcoder"`
	Dialog       DialogConfig       `mapstructure:"dialog"`
	Store        StoreConfig        `mapstructure:"store"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	TempDir           string `mapstructure:"temp_dir"`         // staging files; empty means os.TempDir()
	DefaultSaveDir    string `mapstructure:"default_save_dir"` // initial save-location preference
	MusicDir          string `mapstructure:"music_dir"`        // suggested folder for save prompts
	LogsDir           string `mapstructure:"logs_dir"`
	MaxConcurrentJobs int    `mapstructure:"max_concurrent_jobs"` // 0 means unbounded
}

// TranscoderConfig contains ffmpeg-related configuration
type TranscoderConfig struct {
	Binary       string   `mapstructure:"binary"`
	AudioCodec   string   `mapstructure:"audio_codec"`
	AudioBitrate string   `mapstructure:"audio_bitrate"`
	ID3Version   int      `mapstructure:"id3_version"`
	ExtraArgs    []string `mapstructure:"extra_args"`
	WriteLog     bool     `mapstructure:"write_log"`
}

// DialogConfig selects how save/directory prompts are shown
type DialogConfig struct {
	Method string `mapstructure:"method"` // zenity, kdialog, osascript, none
}

// StoreConfig contains job board storage configuration
type StoreConfig struct {
	DSN string `mapstructure:"dsn"` // sqlite DSN, in-memory by default
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// InMemoryDSN keeps the job board for the lifetime of the process only
const InMemoryDSN = ":memory:"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8765,
		},
		Download: DownloadConfig{
			TempDir:           "",
			DefaultSaveDir:    "",
			MusicDir:          "$HOME/Music",
			LogsDir:           "$HOME/.relaxr/logs",
			MaxConcurrentJobs: 0,
		},
		Transcoder: TranscoderConfig{
			Binary:       "ffmpeg",
			AudioCodec:   "libmp3lame",
			AudioBitrate: "192k",
			ID3Version:   3,
			WriteLog:     true,
		},
		Dialog: DialogConfig{
			Method: "zenity",
		},
		Store: StoreConfig{
			DSN: InMemoryDSN,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
