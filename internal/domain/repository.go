package domain

// JobRepository defines the interface for the session job list
type JobRepository interface {
	// Create stores a new job
	Create(job *Job) error

	// Update updates an existing job
	Update(job *Job) error

	// FindByID finds a job by ID
	FindByID(id string) (*Job, error)

	// FindAll finds all jobs, newest first, with optional column filters
	FindAll(filters map[string]interface{}) ([]*Job, error)

	// CountByStatus returns the number of jobs in a status
	CountByStatus(status JobStatus) (int64, error)

	// GetStats returns job statistics
	GetStats() (*JobStats, error)
}

// JobStats represents job statistics
type JobStats struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	Downloading int64 `json:"downloading"`
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`
}
