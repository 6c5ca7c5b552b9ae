package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a conversion job
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusError       JobStatus = "error"
)

// ErrInvalidTransition is returned when a job is moved to a status its
// current status does not lead to.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Job represents one request to fetch and convert one source URL into one MP3 file
type Job struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	SourceURL      string     `json:"source_url" gorm:"not null"`
	Status         JobStatus  `json:"status" gorm:"not null;index"`
	Progress       int        `json:"progress" gorm:"default:0"`
	Title          string     `json:"title,omitempty"`
	Artist         string     `json:"artist,omitempty"`
	OutputPath     string     `json:"output_path,omitempty"`
	OutputFileName string     `json:"output_file_name,omitempty"`
	ErrorKind      ErrorKind  `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a new pending job
func NewJob(sourceURL string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		SourceURL: sourceURL,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkDownloading moves a pending job into the downloading phase
func (j *Job) MarkDownloading() error {
	if j.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusDownloading)
	}
	now := time.Now()
	j.Status = StatusDownloading
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// SetMetadata records the resolved metadata on the job
func (j *Job) SetMetadata(meta VideoMetadata) {
	j.Title = meta.DisplayTitle
	j.Artist = meta.Artist
	j.UpdatedAt = time.Now()
}

// UpdateProgress records a progress value. Values lower than the current
// one are ignored so progress never moves backwards.
func (j *Job) UpdateProgress(percent int) bool {
	if !j.IsActive() {
		return false
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= j.Progress {
		return false
	}
	j.Progress = percent
	j.UpdatedAt = time.Now()
	return true
}

// MarkCompleted marks the job as completed
func (j *Job) MarkCompleted(outputPath, outputFileName string) error {
	if !j.IsActive() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusCompleted)
	}
	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = 100
	j.OutputPath = outputPath
	j.OutputFileName = outputFileName
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkFailed marks a downloading job as failed with the user-facing
// message of err
func (j *Job) MarkFailed(err error) error {
	if !j.IsActive() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusError)
	}
	now := time.Now()
	j.Status = StatusError
	j.Progress = 0
	j.ErrorKind = KindOf(err)
	j.ErrorMessage = MessageOf(err)
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// IsTerminal checks if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// IsActive checks if the job is currently downloading or converting
func (j *Job) IsActive() bool {
	return j.Status == StatusDownloading
}

// ValidateStatus checks if a status is valid
func ValidateStatus(status JobStatus) bool {
	switch status {
	case StatusPending, StatusDownloading, StatusCompleted, StatusError:
		return true
	}
	return false
}
