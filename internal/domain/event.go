package domain

// EventType names an outbound event
type EventType string

const (
	EventDownloadProgress EventType = "download-progress"
	EventJobFinished      EventType = "job-finished"
)

// Event is pushed from the backend to clients. Progress is set for
// download-progress events, Job for job-finished events.
type Event struct {
	Type     EventType `json:"type"`
	JobID    string    `json:"job_id"`
	Progress int       `json:"progress"`
	Job      *Job      `json:"job,omitempty"`
}

// ProgressEvent creates a download-progress event
func ProgressEvent(jobID string, progress int) Event {
	return Event{Type: EventDownloadProgress, JobID: jobID, Progress: progress}
}

// FinishedEvent creates a job-finished event carrying a snapshot of the job
func FinishedEvent(job *Job) Event {
	snapshot := *job
	return Event{Type: EventJobFinished, JobID: job.ID, Progress: job.Progress, Job: &snapshot}
}
