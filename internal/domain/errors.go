package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a job failed
type ErrorKind string

const (
	KindInvalidURL               ErrorKind = "invalid_url"
	KindMetadataUnavailable      ErrorKind = "metadata_unavailable"
	KindUserCancelled            ErrorKind = "user_cancelled"
	KindDownloadFailed           ErrorKind = "download_failed"
	KindWriteFailed              ErrorKind = "write_failed"
	KindConversionFailed         ErrorKind = "conversion_failed"
	KindDirectoryOperationFailed ErrorKind = "directory_operation_failed"
	KindUnknown                  ErrorKind = "unknown_error"
)

// User-facing messages
const (
	MsgInvalidURL          = "Invalid YouTube URL. Please enter a valid YouTube video URL."
	MsgMetadataUnavailable = "Could not access video information. Please check if the video is available and not private."
	MsgSaveCancelled       = "Save operation cancelled"
	MsgNoDirectorySelected = "No directory selected"
	MsgSetDirectoryFailed  = "Failed to set default directory"
	MsgFolderNotFound      = "Folder not found"
	MsgUnknown             = "An unknown error occurred"
)

// Sentinels usable with errors.Is against any *JobError of the same kind
var (
	ErrInvalidURL               = &JobError{Kind: KindInvalidURL}
	ErrMetadataUnavailable      = &JobError{Kind: KindMetadataUnavailable}
	ErrUserCancelled            = &JobError{Kind: KindUserCancelled}
	ErrDownloadFailed           = &JobError{Kind: KindDownloadFailed}
	ErrWriteFailed              = &JobError{Kind: KindWriteFailed}
	ErrConversionFailed         = &JobError{Kind: KindConversionFailed}
	ErrDirectoryOperationFailed = &JobError{Kind: KindDirectoryOperationFailed}
	ErrUnknown                  = &JobError{Kind: KindUnknown}
)

// JobError is a classified failure carrying the message shown to the user.
// Err holds the underlying cause for logging; it is not always part of Message.
type JobError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewJobError creates a classified error
func NewJobError(kind ErrorKind, message string, cause error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: cause}
}

// InvalidURL creates an InvalidUrl error
func InvalidURL(cause error) *JobError {
	return NewJobError(KindInvalidURL, MsgInvalidURL, cause)
}

// MetadataUnavailable creates a MetadataUnavailable error. The message never
// includes the cause.
func MetadataUnavailable(cause error) *JobError {
	return NewJobError(KindMetadataUnavailable, MsgMetadataUnavailable, cause)
}

// UserCancelled creates a UserCancelled error
func UserCancelled() *JobError {
	return NewJobError(KindUserCancelled, MsgSaveCancelled, nil)
}

// DownloadFailed creates a DownloadFailed error
func DownloadFailed(cause error) *JobError {
	return NewJobError(KindDownloadFailed, fmt.Sprintf("Download error: %s", causeText(cause)), cause)
}

// WriteFailed creates a WriteFailed error
func WriteFailed(cause error) *JobError {
	return NewJobError(KindWriteFailed, fmt.Sprintf("File write error: %s", causeText(cause)), cause)
}

// ConversionFailed creates a ConversionFailed error
func ConversionFailed(cause error) *JobError {
	return NewJobError(KindConversionFailed, fmt.Sprintf("Conversion error: %s", causeText(cause)), cause)
}

// DirectoryOperationFailed creates a DirectoryOperationFailed error
func DirectoryOperationFailed(message string, cause error) *JobError {
	return NewJobError(KindDirectoryOperationFailed, message, cause)
}

// Unknown creates an UnknownError
func Unknown(cause error) *JobError {
	return NewJobError(KindUnknown, MsgUnknown, cause)
}

func (e *JobError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so errors.Is(err, ErrUserCancelled) works for any
// cancelled error.
func (e *JobError) Is(target error) bool {
	t, ok := target.(*JobError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of a classified error, or KindUnknown
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message of err. Unclassified errors
// get the generic unknown message.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var je *JobError
	if errors.As(err, &je) && je.Message != "" {
		return je.Message
	}
	return MsgUnknown
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
