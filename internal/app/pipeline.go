package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
)

const copyBufferSize = 32 * 1024

// Progress ranges of the two phases
const (
	DownloadPhaseMax   = 50
	ConversionPhaseMax = 99
	ProgressDone       = 100
)

// JobOptions carries the per-job destination choices
type JobOptions struct {
	SaveDir  string `json:"save_dir,omitempty"`  // preferred directory; file name comes from the title
	SavePath string `json:"save_path,omitempty"` // explicit output path chosen by the client
}

// ProgressFunc receives progress percentages for one job
type ProgressFunc func(percent int)

// PipelineInput is everything one pipeline run needs
type PipelineInput struct {
	Job         *domain.Job
	Stream      io.Reader
	TotalBytes  int64
	MimeType    string
	Metadata    domain.VideoMetadata
	Destination string
}

// PipelineResult is the outcome of a successful run
type PipelineResult struct {
	FinalPath     string `json:"file_path"`
	FinalFileName string `json:"file_name"`
}

// Pipeline stages an audio stream, transcodes it and reports progress
type Pipeline struct {
	transcoder domain.Transcoder
	prompter   domain.SavePrompter
	tempDir    string
	musicDir   string
	logger     *zap.Logger

	openStaging func(path string) (io.WriteCloser, error)
}

// NewPipeline creates a pipeline. An empty tempDir means os.TempDir().
func NewPipeline(transcoder domain.Transcoder, prompter domain.SavePrompter, tempDir, musicDir string, logger *zap.Logger) *Pipeline {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		transcoder: transcoder,
		prompter:   prompter,
		tempDir:    tempDir,
		musicDir:   musicDir,
		logger:     logger,

		openStaging: createStagingFile,
	}
}

// createStagingFile creates path, failing if it already exists
func createStagingFile(path string) (io.WriteCloser, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ResolveDestination decides where the MP3 is written. A preferred
// directory wins, then an explicit path, and only then is the user prompted.
func (p *Pipeline) ResolveDestination(ctx context.Context, meta domain.VideoMetadata, opts JobOptions) (string, error) {
	if opts.SaveDir != "" {
		return filepath.Join(opts.SaveDir, meta.FileName()), nil
	}
	if opts.SavePath != "" {
		return opts.SavePath, nil
	}
	if p.prompter == nil {
		return "", domain.UserCancelled()
	}

	suggested := meta.FileName()
	if p.musicDir != "" {
		suggested = filepath.Join(p.musicDir, suggested)
	}

	path, err := p.prompter.PromptSavePath(ctx, suggested)
	if err != nil {
		if errors.Is(err, domain.ErrUserCancelled) {
			return "", domain.UserCancelled()
		}
		return "", domain.Unknown(fmt.Errorf("save prompt failed: %w", err))
	}
	if path == "" {
		return "", domain.UserCancelled()
	}
	return path, nil
}

// Run stages the stream to a temp file, transcodes it to the destination
// and removes the staging file on every exit path.
func (p *Pipeline) Run(ctx context.Context, in PipelineInput, onProgress ProgressFunc) (*PipelineResult, error) {
	reporter := newProgressReporter(onProgress)
	log := p.logger.With(zap.String("job_id", in.Job.ID))

	stagingPath, err := p.stage(ctx, in, reporter)
	defer func() { p.removeStaging(log, stagingPath) }()
	if err != nil {
		log.Warn("Staging failed", zap.Error(err))
		return nil, err
	}

	log.Debug("Staging complete, converting",
		zap.String("staging", stagingPath),
		zap.String("destination", in.Destination))

	_, statErr := os.Stat(in.Destination)
	existedBefore := statErr == nil

	req := domain.ConvertRequest{
		JobID:    in.Job.ID,
		Input:    stagingPath,
		Output:   in.Destination,
		Tags:     in.Metadata.Tags(),
		Duration: in.Metadata.Duration,
	}
	if err := p.transcoder.Convert(ctx, req, reporter.converted); err != nil {
		if !existedBefore {
			os.Remove(in.Destination)
		}
		return nil, domain.ConversionFailed(err)
	}

	p.removeStaging(log, stagingPath)
	stagingPath = ""
	reporter.done()

	return &PipelineResult{
		FinalPath:     in.Destination,
		FinalFileName: filepath.Base(in.Destination),
	}, nil
}

// stage creates the staging file and copies the stream into it. The
// returned path is set whenever the file was created, even on error.
func (p *Pipeline) stage(ctx context.Context, in PipelineInput, reporter *progressReporter) (string, error) {
	if err := os.MkdirAll(p.tempDir, 0755); err != nil {
		return "", domain.WriteFailed(fmt.Errorf("failed to create temp directory: %w", err))
	}

	path := filepath.Join(p.tempDir, stagingFileName(in.Job.ID, in.MimeType, time.Now()))
	file, err := p.openStaging(path)
	if err != nil {
		return "", domain.WriteFailed(err)
	}

	if err := copyWithProgress(ctx, file, in.Stream, in.TotalBytes, reporter); err != nil {
		file.Close()
		return path, err
	}

	if err := file.Close(); err != nil {
		return path, domain.WriteFailed(err)
	}
	return path, nil
}

func (p *Pipeline) removeStaging(log *zap.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to delete staging file", zap.String("path", path), zap.Error(err))
	}
}

// copyWithProgress copies src into dst, telling read failures apart from
// write failures.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, reporter *progressReporter) error {
	buf := make([]byte, copyBufferSize)
	var received int64

	for {
		if err := ctx.Err(); err != nil {
			return domain.DownloadFailed(err)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return domain.WriteFailed(err)
			}
			received += int64(n)
			reporter.downloaded(received, total)
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return domain.DownloadFailed(readErr)
		}
	}
}

// stagingFileName returns a unique, time-stamped staging file name
func stagingFileName(jobID, mimeType string, now time.Time) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%d_%s_temp%s", now.UnixNano(), short, stagingExt(mimeType))
}

func stagingExt(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"), strings.HasPrefix(mimeType, "video/webm"):
		return ".webm"
	default:
		return ".m4a"
	}
}

// progressReporter turns byte counts and conversion fractions into
// throttled, non-decreasing percentages.
type progressReporter struct {
	emit        ProgressFunc
	lastPercent int // last download percent that triggered an emission
	lastEmitted int
	finished    bool
}

func newProgressReporter(emit ProgressFunc) *progressReporter {
	if emit == nil {
		emit = func(int) {}
	}
	return &progressReporter{emit: emit, lastEmitted: -1}
}

// downloaded reports the download phase, scaled into 0..50
func (r *progressReporter) downloaded(received, total int64) {
	if total <= 0 {
		return
	}
	percent := int(received * 100 / total)
	if percent > 100 {
		percent = 100
	}
	if percent-r.lastPercent < 1 {
		return
	}
	r.lastPercent = percent
	r.send(percent / 2)
}

// converted reports the conversion phase, scaled into 50..99
func (r *progressReporter) converted(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	value := DownloadPhaseMax + int(fraction*float64(ConversionPhaseMax-DownloadPhaseMax))
	if value <= r.lastEmitted {
		return
	}
	r.send(value)
}

// done emits the single final 100
func (r *progressReporter) done() {
	if r.finished {
		return
	}
	r.finished = true
	r.lastEmitted = ProgressDone
	r.emit(ProgressDone)
}

func (r *progressReporter) send(value int) {
	if r.finished || value < r.lastEmitted {
		return
	}
	if value > ConversionPhaseMax {
		value = ConversionPhaseMax
	}
	r.lastEmitted = value
	r.emit(value)
}
