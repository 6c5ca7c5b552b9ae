package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
)

// Command is a typed request from a client to the backend
type Command interface {
	Name() string
}

// SetDefaultDirectory sets the save-location preference. An empty Path
// asks the user to pick a directory.
type SetDefaultDirectory struct {
	Path string `json:"path,omitempty"`
}

// GetDefaultDirectory reads the save-location preference
type GetDefaultDirectory struct{}

// OpenFileLocation reveals the folder containing Path
type OpenFileLocation struct {
	Path string `json:"path"`
}

// ConvertToMP3 converts one URL and waits for the result
type ConvertToMP3 struct {
	URL      string `json:"url"`
	SavePath string `json:"save_path,omitempty"`
}

func (SetDefaultDirectory) Name() string { return "set-default-directory" }
func (GetDefaultDirectory) Name() string { return "get-default-directory" }
func (OpenFileLocation) Name() string    { return "open-file-location" }
func (ConvertToMP3) Name() string        { return "convert-to-mp3" }

// Response is the reply to any command
type Response struct {
	Success  bool    `json:"success"`
	Path     *string `json:"path,omitempty"`
	FilePath string  `json:"filePath,omitempty"`
	FileName string  `json:"fileName,omitempty"`
	Message  string  `json:"message,omitempty"`
	JobID    string  `json:"jobId,omitempty"`

	Kind domain.ErrorKind `json:"errorKind,omitempty"`
}

func failure(kind domain.ErrorKind, message string) Response {
	return Response{Success: false, Kind: kind, Message: message}
}

// DirectoryResponse is the reply to GetDefaultDirectory; Path is null when unset
type DirectoryResponse struct {
	Path *string `json:"path"`
}

// Dispatcher executes commands against the backend
type Dispatcher struct {
	service *ConversionService
	prefs   *Preferences
	picker  domain.DirectoryPicker
	opener  domain.FileOpener
	logger  *zap.Logger
}

// NewDispatcher creates a command dispatcher
func NewDispatcher(service *ConversionService, prefs *Preferences, picker domain.DirectoryPicker, opener domain.FileOpener, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		service: service,
		prefs:   prefs,
		picker:  picker,
		opener:  opener,
		logger:  logger,
	}
}

// Dispatch executes a command. It never returns an error: failures are
// reported in the response.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Response {
	switch c := cmd.(type) {
	case SetDefaultDirectory:
		return d.setDefaultDirectory(ctx, c)
	case GetDefaultDirectory:
		dir := d.DefaultDirectory()
		return Response{Success: true, Path: dir.Path}
	case OpenFileLocation:
		return d.openFileLocation(ctx, c)
	case ConvertToMP3:
		return d.convertToMP3(ctx, c)
	default:
		d.logger.Warn("Unknown command", zap.String("command", cmd.Name()))
		return failure(domain.KindUnknown, domain.MsgUnknown)
	}
}

// DefaultDirectory returns the current save-location preference
func (d *Dispatcher) DefaultDirectory() DirectoryResponse {
	dir := d.prefs.SaveDir()
	if dir == "" {
		return DirectoryResponse{}
	}
	return DirectoryResponse{Path: &dir}
}

func (d *Dispatcher) setDefaultDirectory(ctx context.Context, c SetDefaultDirectory) Response {
	dir := c.Path
	if dir == "" {
		if d.picker == nil {
			return failure(domain.KindUserCancelled, domain.MsgNoDirectorySelected)
		}
		picked, err := d.picker.PickDirectory(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrUserCancelled) {
				return failure(domain.KindUserCancelled, domain.MsgNoDirectorySelected)
			}
			d.logger.Error("Directory picker failed", zap.Error(err))
			return failure(domain.KindDirectoryOperationFailed, domain.MsgSetDirectoryFailed)
		}
		if picked == "" {
			return failure(domain.KindUserCancelled, domain.MsgNoDirectorySelected)
		}
		dir = picked
	}

	if err := d.prefs.SetSaveDir(dir); err != nil {
		d.logger.Warn("Failed to set default directory", zap.String("path", dir), zap.Error(err))
		return failure(domain.KindOf(err), domain.MessageOf(err))
	}

	d.logger.Info("Default directory set", zap.String("path", dir))
	return Response{Success: true, Path: &dir}
}

func (d *Dispatcher) openFileLocation(ctx context.Context, c OpenFileLocation) Response {
	folder := filepath.Dir(c.Path)
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return failure(domain.KindDirectoryOperationFailed, domain.MsgFolderNotFound)
	}

	if d.opener == nil {
		return failure(domain.KindDirectoryOperationFailed, "Failed to open folder")
	}
	if err := d.opener.Open(ctx, folder); err != nil {
		d.logger.Warn("Failed to open folder", zap.String("path", folder), zap.Error(err))
		return failure(domain.KindDirectoryOperationFailed, err.Error())
	}
	return Response{Success: true}
}

func (d *Dispatcher) convertToMP3(ctx context.Context, c ConvertToMP3) Response {
	opts := d.prefs.JobOptions()
	opts.SavePath = c.SavePath

	job, result, err := d.service.Convert(ctx, c.URL, opts)
	if err != nil {
		resp := failure(domain.KindOf(err), domain.MessageOf(err))
		if job != nil {
			resp.JobID = job.ID
		}
		return resp
	}

	return Response{
		Success:  true,
		FilePath: result.FinalPath,
		FileName: result.FinalFileName,
		JobID:    job.ID,
	}
}

// Submit starts a background job using the current preference
func (d *Dispatcher) Submit(url, savePath string) (*domain.Job, error) {
	opts := d.prefs.JobOptions()
	opts.SavePath = savePath
	return d.service.Submit(url, opts)
}
