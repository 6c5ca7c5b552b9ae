package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
	"github.com/yourusername/relaxr-go/pkg/logger"
)

// Keys of the ffmpeg -progress output
const (
	progressTimeUsPrefix = "out_time_us="
	progressTimeMsPrefix = "out_time_ms=" // also microseconds, despite the name
	progressEndLine      = "progress=end"
)

const stderrTailSize = 4 * 1024

// FFmpegTranscoder implements domain.Transcoder by running ffmpeg
type FFmpegTranscoder struct {
	config      *domain.TranscoderConfig
	logsDir     string
	eventLogger *logger.MultiLogger // For structured events only (LogAppError)
	logger      *zap.Logger
}

// NewFFmpegTranscoder creates a new ffmpeg transcoder
func NewFFmpegTranscoder(config *domain.TranscoderConfig, logsDir string, eventLogger *logger.MultiLogger, log *zap.Logger) *FFmpegTranscoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpegTranscoder{
		config:      config,
		logsDir:     logsDir,
		eventLogger: eventLogger,
		logger:      log,
	}
}

// Convert encodes req.Input into a tagged MP3 at req.Output. The error
// message is the last line ffmpeg wrote to stderr when there is one.
func (t *FFmpegTranscoder) Convert(ctx context.Context, req domain.ConvertRequest, onProgress domain.ConvertProgressFunc) error {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	args := t.BuildArgs(req)

	logFile, err := t.openLogFile()
	if err != nil {
		t.logger.Warn("Transcode log unavailable", zap.Error(err))
	}
	var logOut io.Writer = io.Discard
	if logFile != nil {
		defer logFile.Close()
		logOut = logFile
		writeLogHeader(logFile, req.JobID, ShellEscapeCommand(t.config.Binary, args...))
	}

	tail := newTailBuffer(stderrTailSize)

	cmd := exec.CommandContext(ctx, t.config.Binary, args...)
	cmd.Stderr = io.MultiWriter(logOut, tail)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			writeLogFooter(logFile, false, fmt.Sprintf("failed to start: %v", err))
		}
		return fmt.Errorf("failed to start %s: %w", t.config.Binary, err)
	}

	// The pipe must be drained before Wait closes it
	monitorProgress(stdout, req.Duration, onProgress)

	err = cmd.Wait()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		msg := tail.LastLine()
		if logFile != nil {
			writeLogFooter(logFile, false, fmt.Sprintf("ffmpeg failed: %v", err))
		}
		if t.eventLogger != nil {
			t.eventLogger.LogAppError("Transcode failed",
				zap.String("job_id", req.JobID),
				zap.String("output", req.Output),
				zap.String("stderr", msg),
				zap.Error(err))
		}
		if msg != "" && ctx.Err() == nil {
			return fmt.Errorf("%s (%w)", msg, err)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	if logFile != nil {
		writeLogFooter(logFile, true, fmt.Sprintf("Converted: %s", req.Output))
	}
	onProgress(1)
	return nil
}

// BuildArgs returns the ffmpeg arguments for a request
func (t *FFmpegTranscoder) BuildArgs(req domain.ConvertRequest) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-nostats",
		"-progress", "pipe:1",
		"-i", req.Input,
		"-vn",
		"-map_metadata", "-1",
		"-metadata", "title=" + req.Tags.Title,
		"-metadata", "artist=" + req.Tags.Artist,
	}

	if t.config.ID3Version > 0 {
		args = append(args, "-id3v2_version", strconv.Itoa(t.config.ID3Version))
	}
	if t.config.AudioCodec != "" {
		args = append(args, "-codec:a", t.config.AudioCodec)
	}
	if t.config.AudioBitrate != "" {
		args = append(args, "-b:a", t.config.AudioBitrate)
	}
	args = append(args, t.config.ExtraArgs...)

	return append(args, "-f", "mp3", req.Output)
}

// openLogFile opens today's transcode log, or returns nil when logging is off
func (t *FFmpegTranscoder) openLogFile() (*os.File, error) {
	if !t.config.WriteLog || t.logsDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(t.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	path := filepath.Join(t.logsDir, "transcode-"+dateStr+".log")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the transcode start marker
func writeLogHeader(file *os.File, jobID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Transcode: %s ===\n", timestamp, jobID)
	fmt.Fprintf(file, "$ %s\n", cmdLine)
}

// writeLogFooter writes the transcode end marker
func writeLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(file, "[%s] %s: %s\n", timestamp, status, message)
	file.WriteString("=== END ===\n\n")
}

// monitorProgress reads ffmpeg -progress output until EOF
func monitorProgress(r io.Reader, duration time.Duration, onProgress domain.ConvertProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if fraction, ok := parseProgressLine(scanner.Text(), duration); ok {
			onProgress(fraction)
		}
	}
	// keep draining so ffmpeg never blocks on a full pipe
	io.Copy(io.Discard, r)
}

// parseProgressLine turns one progress line into a fraction of duration
func parseProgressLine(line string, duration time.Duration) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == progressEndLine {
		return 1, true
	}
	if duration <= 0 {
		return 0, false
	}

	var value string
	switch {
	case strings.HasPrefix(line, progressTimeUsPrefix):
		value = strings.TrimPrefix(line, progressTimeUsPrefix)
	case strings.HasPrefix(line, progressTimeMsPrefix):
		value = strings.TrimPrefix(line, progressTimeMsPrefix)
	default:
		return 0, false
	}

	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}

	fraction := float64(us) / float64(duration.Microseconds())
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

// LastLine returns the last non-empty line written
func (b *tailBuffer) LastLine() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := bytes.Split(b.buf, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(string(lines[i])); line != "" {
			return line
		}
	}
	return ""
}
