package domain

import (
	"context"
	"io"
	"time"
)

// VideoSource resolves user URLs into metadata and audio streams
type VideoSource interface {
	// Resolve validates the URL and fetches the video metadata
	Resolve(ctx context.Context, url string) (*ResolvedVideo, error)

	// OpenAudioStream opens the best available audio track of a resolved video
	OpenAudioStream(ctx context.Context, video *ResolvedVideo) (*AudioStream, error)
}

// ResolvedVideo is the result of a successful Resolve
type ResolvedVideo struct {
	ID       string
	URL      string
	Metadata VideoMetadata

	// Ref is a source-specific handle reused by OpenAudioStream
	Ref any
}

// AudioStream is an open audio byte stream
type AudioStream struct {
	Body       io.ReadCloser
	TotalBytes int64 // <= 0 when unknown
	MimeType   string
}

// Tags are the ID3 key/value pairs written into the output file
type Tags struct {
	Title  string
	Artist string
}

// ConvertRequest describes one transcoder invocation
type ConvertRequest struct {
	JobID    string
	Input    string
	Output   string
	Tags     Tags
	Duration time.Duration // 0 when unknown
}

// ConvertProgressFunc receives the fraction [0,1] of the input converted so far
type ConvertProgressFunc func(fraction float64)

// Transcoder converts a staged audio file into a tagged MP3
type Transcoder interface {
	Convert(ctx context.Context, req ConvertRequest, onProgress ConvertProgressFunc) error
}

// SavePrompter asks the user where to save an output file. It returns
// ErrUserCancelled when the user dismisses the prompt.
type SavePrompter interface {
	PromptSavePath(ctx context.Context, suggested string) (string, error)
}

// DirectoryPicker asks the user to choose a directory. It returns
// ErrUserCancelled when the user dismisses the picker.
type DirectoryPicker interface {
	PickDirectory(ctx context.Context) (string, error)
}

// FileOpener reveals a folder in the platform file manager
type FileOpener interface {
	Open(ctx context.Context, path string) error
}
