package model

import "time"

// JobType identifies a kind of deferred work.
type JobType string

const (
	JobSummary JobType = "summary"
	JobExcel   JobType = "excel"
)

// JobStatus is the lifecycle of a queued job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one unit of deferred work tied to a search session. At most one job
// per (session, type) may be in flight.
type Job struct {
	SessionID  string    `json:"session_id"`
	Type       JobType   `json:"type"`
	Status     JobStatus `json:"status"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Error      string    `json:"error,omitempty"`
}

// DedupeKey identifies the (session, type) pair for in-flight deduplication.
func (j Job) DedupeKey() string {
	return j.SessionID + "/" + string(j.Type)
}
