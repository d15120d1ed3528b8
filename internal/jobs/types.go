// Package jobs defines asynchronous bill parsing jobs and the queue and
// store contracts that carry them.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeParseBill parses an uploaded bill file into entries.
	JobTypeParseBill JobType = "parse_bill"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// DefaultMaxRetries applies when a published job leaves MaxRetries at zero.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// ParseBillJob asks a worker to ingest one stored bill file.
type ParseBillJob struct {
	JobID string `json:"job_id"`

	// File is the uploaded bill file. It is registered in storage by the
	// worker, not by the publisher.
	File domain.BillFile `json:"file"`

	// Results, filled in on success.
	ParsingRunID string `json:"parsing_run_id,omitempty"`
	EntryCount   int    `json:"entry_count"`
	Duplicate    bool   `json:"duplicate,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ParseBillJob) GetID() string        { return j.JobID }
func (j *ParseBillJob) GetType() JobType     { return JobTypeParseBill }
func (j *ParseBillJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	// PublishParseBill enqueues a bill parsing job, filling in its id,
	// status, creation time and retry budget when unset.
	PublishParseBill(ctx context.Context, job *ParseBillJob) error

	Close() error
}

// Consumer hands queued jobs to a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for
// retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *ParseBillJob) error

	// GetJob returns ErrJobNotFound for unknown ids.
	GetJob(ctx context.Context, jobID string) (*ParseBillJob, error)

	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseBillJob, error)

	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs. Zero values match
// everything.
type JobFilter struct {
	FileID string
	Status JobStatus
	Limit  int
	Offset int
}
