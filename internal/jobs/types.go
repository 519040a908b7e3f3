// Package jobs runs the scheduled jobs of the categoriser and records their runs.
package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType names a schedulable job.
type JobType string

const (
	// JobTypeBankSync triggers bank sync on the remote store.
	JobTypeBankSync JobType = "bank_sync"
	// JobTypeCategorise runs the categorisation pipeline.
	JobTypeCategorise JobType = "categorise"
)

// JobStatus represents the current status of a run.
type JobStatus string

const (
	// JobStatusRunning indicates the run is in progress.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the run completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the run failed.
	JobStatusFailed JobStatus = "failed"
)

// Trigger sources.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

var (
	// ErrRunNotFound is returned by RunStore lookups for an unknown id.
	ErrRunNotFound = errors.New("jobs: run not found")
	// ErrAlreadyRunning is returned by RunNow while a run of the same job is in progress.
	ErrAlreadyRunning = errors.New("jobs: job is already running")
	// ErrRunnerStopped is returned when triggering a stopped runner.
	ErrRunnerStopped = errors.New("jobs: runner is stopped")
)

// Stats are job-specific counters reported by a run.
type Stats map[string]int

// Run is the record of one job execution.
type Run struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// Job is the job this run executed.
	Job JobType `json:"job"`

	// Trigger says what started the run: schedule, startup, manual or cli.
	Trigger string `json:"trigger"`

	// Status is the current status of the run.
	Status JobStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the run failed.
	Error string `json:"error,omitempty"`

	// Stats holds the counters returned by the job.
	Stats Stats `json:"stats,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// JobFunc executes one run of a job.
type JobFunc func(ctx context.Context, runID string) (Stats, error)

// RunStore defines the interface for storing and retrieving run records.
type RunStore interface {
	// SaveRun saves or updates a run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns retrieves runs, newest first, with optional filtering.
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}

// RunObserver is notified after every finished run.
type RunObserver interface {
	RunFinished(ctx context.Context, run *Run)
}

// RunFilter defines filtering criteria for listing runs.
type RunFilter struct {
	// Job filters runs by job type.
	Job JobType

	// Status filters runs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
