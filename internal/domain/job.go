package domain

import "time"

// JobStatus enumerates render job lifecycle states.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusRendered JobStatus = "rendered"
	JobStatusFailed   JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusRendered || s == JobStatusFailed
}

// RenderJob is one attempt to produce a visualization for one quote.
// Jobs are never re-queued and never deleted; a retry is a brand-new row
// referencing the same quote.
type RenderJob struct {
	ID       string
	TenantID string
	QuoteID  string
	Status   JobStatus
	// Prompt holds the seed text at enqueue time and the fully composed
	// instruction once a worker has executed the job.
	Prompt      string
	ImageURL    string // set only on rendered
	ErrorCode   string // set only on failed
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}
