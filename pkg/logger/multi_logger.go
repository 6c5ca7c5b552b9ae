package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory names a category log file
type LogCategory string

const (
	CategoryJobs  LogCategory = "jobs"  // job lifecycle events
	CategoryError LogCategory = "error" // failed jobs, panics, 5xx responses
)

// Categories lists every category with its own log file
var Categories = []LogCategory{CategoryJobs, CategoryError}

// MultiLogger writes JSON lines into one file per category and day. Raw
// encoder output goes to the transcoder's own log file, not through here.
type MultiLogger struct {
	mu      sync.RWMutex
	loggers map[LogCategory]*zap.Logger
	files   []*os.File
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // minimum level of the jobs category
	LogsDir string
}

// NewMultiLogger opens today's file of every category
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	// error only ever takes errors whatever the configured level
	levels := map[LogCategory]zapcore.Level{
		CategoryJobs:  parseLevel(config.Level, zapcore.InfoLevel),
		CategoryError: zapcore.ErrorLevel,
	}

	ml := &MultiLogger{loggers: make(map[LogCategory]*zap.Logger, len(Categories))}
	now := time.Now()
	for _, category := range Categories {
		file, err := os.OpenFile(CategoryLogPath(config.LogsDir, category, now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			ml.Close()
			return nil, fmt.Errorf("failed to open %s log: %w", category, err)
		}
		ml.files = append(ml.files, file)

		core := zapcore.NewCore(zapcore.NewJSONEncoder(categoryEncoderConfig()), zapcore.AddSync(file), levels[category])
		ml.loggers[category] = zap.New(core).With(zap.String("category", string(category)))
	}

	return ml, nil
}

// categoryEncoderConfig matches the keys LogReader parses
func categoryEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.CallerKey = ""
	return cfg
}

// CategoryLogPath returns the log file of a category for a given day
func CategoryLogPath(logsDir string, category LogCategory, date time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))
}

func (ml *MultiLogger) logger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	if l, ok := ml.loggers[category]; ok {
		return l
	}
	return zap.NewNop()
}

// LogAppError logs an application-level error (failed jobs, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.logger(CategoryError).Error(msg, fields...)
}

// LogJobEvent logs a job lifecycle event with structured data
func (ml *MultiLogger) LogJobEvent(event string, fields ...zap.Field) {
	ml.logger(CategoryJobs).Info(event, fields...)
}

// Close flushes all loggers and closes their files. Later calls to the
// log methods are dropped.
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var err error
	for _, l := range ml.loggers {
		err = multierr.Append(err, l.Sync())
	}
	for _, file := range ml.files {
		err = multierr.Append(err, file.Close())
	}
	ml.loggers = nil
	ml.files = nil
	return err
}
