package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/relaxr-go/internal/domain"
)

// EnvPrefix is the prefix of environment variable overrides (RELAXR_SERVER_PORT, ...)
const EnvPrefix = "RELAXR"

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.relaxr")
		v.AddConfigPath("/etc/relaxr")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the config file.
func setDefaults(v *viper.Viper, config *domain.Config) {
	v.SetDefault("server.host", config.Server.Host)
	v.SetDefault("server.port", config.Server.Port)
	v.SetDefault("download.temp_dir", config.Download.TempDir)
	v.SetDefault("download.default_save_dir", config.Download.DefaultSaveDir)
	v.SetDefault("download.music_dir", config.Download.MusicDir)
	v.SetDefault("download.logs_dir", config.Download.LogsDir)
	v.SetDefault("download.max_concurrent_jobs", config.Download.MaxConcurrentJobs)
	v.SetDefault("transcoder.binary", config.Transcoder.Binary)
	v.SetDefault("transcoder.audio_codec", config.Transcoder.AudioCodec)
	v.SetDefault("transcoder.audio_bitrate", config.Transcoder.AudioBitrate)
	v.SetDefault("transcoder.id3_version", config.Transcoder.ID3Version)
	v.SetDefault("transcoder.extra_args", config.Transcoder.ExtraArgs)
	v.SetDefault("transcoder.write_log", config.Transcoder.WriteLog)
	v.SetDefault("dialog.method", config.Dialog.Method)
	v.SetDefault("store.dsn", config.Store.DSN)
	v.SetDefault("notification.enabled", config.Notification.Enabled)
	v.SetDefault("notification.method", config.Notification.Method)
	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output_path", config.Logging.OutputPath)
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.TempDir = expandPath(config.Download.TempDir)
	config.Download.DefaultSaveDir = expandPath(config.Download.DefaultSaveDir)
	config.Download.MusicDir = expandPath(config.Download.MusicDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)

	if config.Store.DSN != domain.InMemoryDSN {
		config.Store.DSN = expandPath(config.Store.DSN)
	}

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// $HOME first so it resolves even where the variable is unset
	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.MaxConcurrentJobs < 0 {
		return fmt.Errorf("max concurrent jobs cannot be negative")
	}

	if config.Download.LogsDir == "" {
		return fmt.Errorf("logs directory not configured")
	}

	if config.Transcoder.Binary == "" {
		return fmt.Errorf("transcoder binary not configured")
	}

	if config.Store.DSN == "" {
		return fmt.Errorf("store dsn not configured")
	}

	switch config.Dialog.Method {
	case "zenity", "kdialog", "osascript", "none":
	default:
		return fmt.Errorf("unknown dialog method: %s", config.Dialog.Method)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
