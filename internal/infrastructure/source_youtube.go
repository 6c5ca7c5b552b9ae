package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Path prefixes that carry the video ID as the next segment
var idPathPrefixes = []string{"/shorts/", "/embed/", "/v/", "/live/"}

var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"gaming.youtube.com":       true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

const shortHost = "youtu.be"

// youtubeClient is the subset of *youtube.Client the source uses
type youtubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTubeSource implements domain.VideoSource for YouTube
type YouTubeSource struct {
	client youtubeClient
	logger *zap.Logger
}

// NewYouTubeSource creates a YouTube source. A nil httpClient uses
// http.DefaultClient.
func NewYouTubeSource(httpClient *http.Client, logger *zap.Logger) *YouTubeSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return newYouTubeSource(&youtube.Client{HTTPClient: httpClient}, logger)
}

func newYouTubeSource(client youtubeClient, logger *zap.Logger) *YouTubeSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YouTubeSource{client: client, logger: logger}
}

// Resolve validates the URL and fetches title and author. Validation
// happens before any network access.
func (s *YouTubeSource) Resolve(ctx context.Context, rawURL string) (*domain.ResolvedVideo, error) {
	id, err := ExtractVideoID(rawURL)
	if err != nil {
		s.logger.Debug("Rejected URL", zap.String("url", rawURL), zap.Error(err))
		return nil, domain.InvalidURL(err)
	}

	video, err := s.client.GetVideoContext(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to fetch video info",
			zap.String("url", rawURL),
			zap.String("video_id", id),
			zap.Error(err))
		return nil, domain.MetadataUnavailable(err)
	}

	meta := domain.NewVideoMetadata(video.Title, video.Author, video.Duration)
	s.logger.Debug("Resolved video",
		zap.String("video_id", id),
		zap.String("title", meta.DisplayTitle),
		zap.String("artist", meta.Artist),
		zap.Duration("duration", meta.Duration))

	return &domain.ResolvedVideo{
		ID:       id,
		URL:      rawURL,
		Metadata: meta,
		Ref:      video,
	}, nil
}

// OpenAudioStream opens the best audio format of a resolved video
func (s *YouTubeSource) OpenAudioStream(ctx context.Context, resolved *domain.ResolvedVideo) (*domain.AudioStream, error) {
	video, ok := resolved.Ref.(*youtube.Video)
	if !ok || video == nil {
		return nil, domain.Unknown(fmt.Errorf("video %s was not resolved by this source", resolved.ID))
	}

	format := pickAudioFormat(video.Formats)
	if format == nil {
		return nil, domain.DownloadFailed(errors.New("no audio format available"))
	}

	body, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, domain.DownloadFailed(err)
	}
	if size <= 0 {
		size = format.ContentLength
	}

	s.logger.Debug("Opened audio stream",
		zap.String("video_id", resolved.ID),
		zap.Int("itag", format.ItagNo),
		zap.String("mime_type", format.MimeType),
		zap.Int("bitrate", format.Bitrate),
		zap.Int64("size", size))

	return &domain.AudioStream{
		Body:       body,
		TotalBytes: size,
		MimeType:   format.MimeType,
	}, nil
}

// ExtractVideoID validates a YouTube URL and returns its video ID
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == shortHost:
		id = firstSegment(u.Path)
	case youtubeHosts[host]:
		id = u.Query().Get("v")
		if id == "" {
			for _, prefix := range idPathPrefixes {
				if strings.HasPrefix(u.Path, prefix) {
					id = firstSegment(strings.TrimPrefix(u.Path, prefix))
					break
				}
			}
		}
	default:
		return "", fmt.Errorf("not a youtube host: %q", host)
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("no valid video id in %q", rawURL)
	}
	return id, nil
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// pickAudioFormat prefers the audio-only format with the highest bitrate,
// then any format that carries audio.
func pickAudioFormat(formats youtube.FormatList) *youtube.Format {
	withAudio := formats.WithAudioChannels()

	var best, fallback *youtube.Format
	for i := range withAudio {
		f := &withAudio[i]
		if strings.HasPrefix(f.MimeType, "audio/") {
			if best == nil || f.Bitrate > best.Bitrate {
				best = f
			}
		}
		if fallback == nil || f.Bitrate > fallback.Bitrate {
			fallback = f
		}
	}
	if best != nil {
		return best
	}
	return fallback
}
