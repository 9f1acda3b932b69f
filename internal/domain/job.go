package domain

import "time"

// JobKind identifies what the worker should do with a claimed job.
type JobKind string

const (
	// JobGenerate produces the first AI draft for new content.
	JobGenerate JobKind = "generate"

	// JobRegenerate reruns generation with the rejection reason as feedback.
	JobRegenerate JobKind = "regenerate"

	// JobPublish fans the content out to its target platforms. run_at in the
	// future makes it a scheduled publish.
	JobPublish JobKind = "publish"
)

// JobStatus tracks a job through the queue.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one durable unit of background work tied to a content item. Jobs
// survive process restarts; a crashed worker's claims are reset by the
// recovery sweep.
type Job struct {
	ID        string    `db:"id"         json:"id"`
	ContentID string    `db:"content_id" json:"content_id"`
	Kind      JobKind   `db:"kind"       json:"kind"`
	Status    JobStatus `db:"status"     json:"status"`

	// RunAt gates when the job becomes claimable.
	RunAt time.Time `db:"run_at" json:"run_at"`

	Attempts     int     `db:"attempts"      json:"attempts"`
	MaxAttempts  int     `db:"max_attempts"  json:"max_attempts"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// maxAttemptsFor sets the retry budget per kind. Generation runs at most
// once per trigger; further drafts come only from the reviewer-driven
// reject loop. Publish jobs may be retried after infrastructure failures.
func maxAttemptsFor(kind JobKind) int {
	if kind == JobPublish {
		return DefaultMaxRetries
	}
	return 1
}

// NewJob creates a pending job for a content item, runnable at runAt.
func NewJob(contentID string, kind JobKind, runAt time.Time) *Job {
	now := time.Now().UTC()
	return &Job{
		ContentID:   contentID,
		Kind:        kind,
		Status:      JobPending,
		RunAt:       runAt.UTC(),
		MaxAttempts: maxAttemptsFor(kind),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasAttemptsLeft reports whether the job may be retried after a failure.
func (j *Job) HasAttemptsLeft() bool {
	return j.Attempts < j.MaxAttempts
}

// QueueStats summarizes the job queue for the stats endpoint.
type QueueStats struct {
	Pending       int64   `json:"pending"`
	Running       int64   `json:"running"`
	Done          int64   `json:"done"`
	Failed        int64   `json:"failed"`
	AvgLagSeconds float64 `json:"avg_lag_seconds"`
}

// ContentStats summarizes content by lifecycle status.
type ContentStats struct {
	Draft           int64 `json:"draft"`
	PendingApproval int64 `json:"pending_approval"`
	Approved        int64 `json:"approved"`
	Rejected        int64 `json:"rejected"`
	Retrying        int64 `json:"retrying"`
	Scheduled       int64 `json:"scheduled"`
	Published       int64 `json:"published"`
	Failed          int64 `json:"failed"`
}
