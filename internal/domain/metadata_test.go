package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"punctuation replaced one by one", "My Song (Live)!", "My Song _Live__"},
		{"plain words untouched", "Plain Title 2024", "Plain Title 2024"},
		{"underscore is a word char", "a_b", "a_b"},
		{"path separators", "AC/DC - Back\\In", "AC_DC _ Back_In"},
		{"non-ascii letters", "Café", "Caf_"},
		{"tabs kept", "a\tb", "a\tb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"My Song (Live)!", "Über—Track #1", "x/y\\z", "already_clean"}

	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), in)
	}
}

func TestNewVideoMetadata(t *testing.T) {
	meta := NewVideoMetadata("My Song (Live)!", "The Band!", 3*time.Minute)

	assert.Equal(t, "My Song _Live__", meta.Title)
	assert.Equal(t, "My Song (Live)!", meta.DisplayTitle)
	assert.Equal(t, "The Band_", meta.Artist)
	assert.Equal(t, "My Song _Live__.mp3", meta.FileName())
	assert.Equal(t, Tags{Title: "My Song (Live)!", Artist: "The Band_"}, meta.Tags())
}

func TestNewVideoMetadata_UnknownArtist(t *testing.T) {
	meta := NewVideoMetadata("Song", "", 0)

	assert.Equal(t, UnknownArtist, meta.Artist)
}

func TestJobError_Is(t *testing.T) {
	err := ConversionFailed(errors.New("exit status 1"))

	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.NotErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, KindConversionFailed, KindOf(err))
	assert.Contains(t, MessageOf(err), "exit status 1")
}

func TestMetadataUnavailable_HidesCause(t *testing.T) {
	cause := errors.New("status 403: video is private")
	err := MetadataUnavailable(cause)

	assert.Equal(t, MsgMetadataUnavailable, err.Error())
	assert.Equal(t, MsgMetadataUnavailable, MessageOf(err))
	assert.NotContains(t, MessageOf(err), "status 403")
	assert.ErrorIs(t, err, cause)
}
