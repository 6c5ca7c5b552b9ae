package domain

import (
	"strings"
	"time"
)

// UnknownArtist is used when the source has no author
const UnknownArtist = "Unknown Artist"

// MP3Extension is the extension of every output file
const MP3Extension = ".mp3"

// VideoMetadata describes the resolved video
type VideoMetadata struct {
	Title        string        `json:"title"`         // sanitized, used for file names
	DisplayTitle string        `json:"display_title"` // as published, used for the title tag
	Artist       string        `json:"artist"`        // sanitized
	Duration     time.Duration `json:"duration"`
}

// NewVideoMetadata builds metadata from raw source values
func NewVideoMetadata(title, author string, duration time.Duration) VideoMetadata {
	artist := UnknownArtist
	if author != "" {
		artist = Sanitize(author)
	}
	return VideoMetadata{
		Title:        Sanitize(title),
		DisplayTitle: title,
		Artist:       artist,
		Duration:     duration,
	}
}

// FileName returns the output file name derived from the title
func (m VideoMetadata) FileName() string {
	return m.Title + MP3Extension
}

// Tags returns the ID3 tags written into the MP3
func (m VideoMetadata) Tags() Tags {
	return Tags{Title: m.DisplayTitle, Artist: m.Artist}
}

// Sanitize replaces every character that is not an ASCII word character or
// whitespace with an underscore. Each character is replaced on its own.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isWordOrSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isWordOrSpace(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\r', r == '\f', r == '\v':
		return true
	}
	return false
}
