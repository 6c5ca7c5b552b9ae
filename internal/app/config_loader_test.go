package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
download:
  temp_dir: /tmp/relaxr-test
  music_dir: ~/Tunes
  max_concurrent_jobs: 2
transcoder:
  audio_bitrate: 320k
  extra_args: ["-ar", "44100"]
dialog:
  method: none
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "/tmp/relaxr-test", config.Download.TempDir)
	assert.Equal(t, filepath.Join(home, "Tunes"), config.Download.MusicDir)
	assert.Equal(t, 2, config.Download.MaxConcurrentJobs)
	assert.Equal(t, "320k", config.Transcoder.AudioBitrate)
	assert.Equal(t, "ffmpeg", config.Transcoder.Binary)
	assert.Equal(t, []string{"-ar", "44100"}, config.Transcoder.ExtraArgs)
	assert.Equal(t, "none", config.Dialog.Method)
	assert.Equal(t, ":memory:", config.Store.DSN)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9100\n")
	t.Setenv("RELAXR_SERVER_PORT", "9200")
	t.Setenv("RELAXR_DIALOG_METHOD", "kdialog")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, config.Server.Port)
	assert.Equal(t, "kdialog", config.Dialog.Method)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"negative concurrency", "download:\n  max_concurrent_jobs: -1\n"},
		{"unknown dialog", "dialog:\n  method: gtk\n"},
		{"empty binary", "transcoder:\n  binary: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("RELAXR_TEST_DIR", "/data")

	assert.Equal(t, "", expandPath(""))
	assert.Equal(t, filepath.Join(home, "Music"), expandPath("~/Music"))
	assert.Equal(t, home+"/.relaxr/logs", expandPath("$HOME/.relaxr/logs"))
	assert.Equal(t, "/data/out", expandPath("$RELAXR_TEST_DIR/out"))
}
