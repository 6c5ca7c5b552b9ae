package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// FileOpener reveals folders in the platform file manager
type FileOpener struct {
	goos   string
	logger *zap.Logger
	start  func(ctx context.Context, name string, args ...string) error
}

// NewFileOpener creates a file opener for the running platform
func NewFileOpener(logger *zap.Logger) *FileOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileOpener{
		goos:   runtime.GOOS,
		logger: logger,
		start:  startDetached,
	}
}

// Open opens path in the file manager without waiting for it to exit
func (o *FileOpener) Open(ctx context.Context, path string) error {
	name, args := openCommand(o.goos, path)
	if err := o.start(ctx, name, args...); err != nil {
		o.logger.Warn("Failed to open folder",
			zap.String("path", path),
			zap.String("command", ShellEscapeCommand(name, args...)),
			zap.Error(err))
		return fmt.Errorf("failed to open folder: %w", err)
	}

	o.logger.Debug("Opened folder", zap.String("path", path))
	return nil
}

func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "explorer", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

// startDetached starts a command and reaps it in the background. The
// file manager outlives the request, so ctx is not bound to the process.
func startDetached(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
