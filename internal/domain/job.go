package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of a job.
// It is deliberately a distinct type from ItemStatus so the two cannot be
// cross-assigned.
type JobStatus string

// Possible job status values
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID           = errors.New("job ID cannot be empty")
	ErrEmptyJobTenantID     = errors.New("job tenant ID cannot be empty")
	ErrJobWithoutItems      = errors.New("job must contain at least one item")
	ErrInvalidJobStatus     = errors.New("invalid job status")
	ErrProcessedOutOfRange  = errors.New("processed count cannot exceed total items")
)

// Job represents one batch of items submitted together for analysis.
// Processed counts the job's items that are no longer pending; the job is
// completed exactly when every item has settled.
type Job struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Status     JobStatus `json:"status"`
	TotalItems int       `json:"total_items"`
	Processed  int       `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJob creates a queued Job for the given tenant covering totalItems items.
// Returns an error if validation fails.
func NewJob(tenantID uuid.UUID, totalItems int) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Status:     JobStatusQueued,
		TotalItems: totalItems,
		Processed:  0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.TenantID == uuid.Nil {
		return ErrEmptyJobTenantID
	}

	if j.TotalItems < 1 {
		return ErrJobWithoutItems
	}

	if j.Processed < 0 || j.Processed > j.TotalItems {
		return ErrProcessedOutOfRange
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	return nil
}

// IsComplete reports whether every item in the job has settled.
func (j *Job) IsComplete() bool {
	return j.Processed == j.TotalItems
}

// RollupStatus derives the job status implied by a recomputed settled-item
// count. A fully settled job is completed no matter how its items settled;
// per-item failure lives on the items, not on the job. A partially settled
// job is processing, and a job with nothing settled yet keeps its current
// status.
func RollupStatus(settled, totalItems int, current JobStatus) JobStatus {
	switch {
	case totalItems > 0 && settled >= totalItems:
		return JobStatusCompleted
	case settled > 0:
		return JobStatusProcessing
	default:
		return current
	}
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
