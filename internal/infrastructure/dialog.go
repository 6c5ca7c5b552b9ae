package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
)

// DialogService shows native save and folder dialogs through a helper
// program. It implements domain.SavePrompter and domain.DirectoryPicker.
type DialogService struct {
	config *domain.DialogConfig
	logger *zap.Logger

	// run executes a dialog command and returns its trimmed stdout
	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewDialogService creates a new dialog service
func NewDialogService(config *domain.DialogConfig, logger *zap.Logger) *DialogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DialogService{
		config: config,
		logger: logger,
		run:    runDialog,
	}
}

// PromptSavePath asks where to save an MP3, starting at suggested
func (d *DialogService) PromptSavePath(ctx context.Context, suggested string) (string, error) {
	name, args, err := d.saveCommand(suggested)
	if err != nil {
		return "", err
	}

	path, err := d.show(ctx, name, args...)
	if err != nil {
		return "", err
	}
	if d.config.Method == "osascript" && !strings.HasSuffix(strings.ToLower(path), domain.MP3Extension) {
		path += domain.MP3Extension
	}
	return path, nil
}

// PickDirectory asks for a directory
func (d *DialogService) PickDirectory(ctx context.Context) (string, error) {
	name, args, err := d.directoryCommand()
	if err != nil {
		return "", err
	}
	return d.show(ctx, name, args...)
}

func (d *DialogService) saveCommand(suggested string) (string, []string, error) {
	switch d.config.Method {
	case "zenity":
		return "zenity", []string{
			"--file-selection", "--save", "--confirm-overwrite",
			"--title=Save MP3",
			"--filename=" + suggested,
			"--file-filter=MP3 files | *.mp3",
		}, nil
	case "kdialog":
		return "kdialog", []string{
			"--title", "Save MP3",
			"--getsavefilename", suggested, "*.mp3",
		}, nil
	case "osascript":
		script := fmt.Sprintf(
			`POSIX path of (choose file name with prompt "Save MP3" default name "%s" default location (POSIX file "%s"))`,
			appleScriptEscape(filepath.Base(suggested)),
			appleScriptEscape(filepath.Dir(suggested)))
		return "osascript", []string{"-e", script}, nil
	case "none":
		return "", nil, domain.UserCancelled()
	default:
		return "", nil, fmt.Errorf("unknown dialog method: %s", d.config.Method)
	}
}

func (d *DialogService) directoryCommand() (string, []string, error) {
	switch d.config.Method {
	case "zenity":
		return "zenity", []string{"--file-selection", "--directory", "--title=Choose default folder"}, nil
	case "kdialog":
		return "kdialog", []string{"--title", "Choose default folder", "--getexistingdirectory"}, nil
	case "osascript":
		return "osascript", []string{"-e", `POSIX path of (choose folder with prompt "Choose default folder")`}, nil
	case "none":
		return "", nil, domain.UserCancelled()
	default:
		return "", nil, fmt.Errorf("unknown dialog method: %s", d.config.Method)
	}
}

// show runs a dialog and maps a dismissed dialog to UserCancelled
func (d *DialogService) show(ctx context.Context, name string, args ...string) (string, error) {
	out, err := d.run(ctx, name, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			d.logger.Debug("Dialog dismissed",
				zap.String("method", d.config.Method),
				zap.Int("exit_code", exitErr.ExitCode()))
			return "", domain.UserCancelled()
		}
		d.logger.Error("Failed to show dialog",
			zap.String("method", d.config.Method),
			zap.Error(err))
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	if out == "" {
		return "", domain.UserCancelled()
	}
	return out, nil
}

func runDialog(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
