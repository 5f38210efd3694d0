package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	t.Parallel() // Enable parallel execution
	tenantID := uuid.New()

	job, err := NewJob(tenantID, 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if job.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if job.TenantID != tenantID {
		t.Errorf("Expected tenant ID %s, got %s", tenantID, job.TenantID)
	}

	if job.Status != JobStatusQueued {
		t.Errorf("Expected status %s, got %s", JobStatusQueued, job.Status)
	}

	if job.TotalItems != 5 {
		t.Errorf("Expected 5 total items, got %d", job.TotalItems)
	}

	if job.Processed != 0 {
		t.Errorf("Expected zero processed, got %d", job.Processed)
	}

	// Test invalid tenant ID
	_, err = NewJob(uuid.Nil, 5)
	if err != ErrEmptyJobTenantID {
		t.Errorf("Expected error %v, got %v", ErrEmptyJobTenantID, err)
	}

	// Test empty batch
	_, err = NewJob(tenantID, 0)
	if err != ErrJobWithoutItems {
		t.Errorf("Expected error %v, got %v", ErrJobWithoutItems, err)
	}
}

func TestJobValidate(t *testing.T) {
	t.Parallel() // Enable parallel execution
	valid := Job{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		Status:     JobStatusProcessing,
		TotalItems: 3,
		Processed:  2,
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	overflow := valid
	overflow.Processed = 4
	if err := overflow.Validate(); err != ErrProcessedOutOfRange {
		t.Errorf("Expected error %v, got %v", ErrProcessedOutOfRange, err)
	}

	negative := valid
	negative.Processed = -1
	if err := negative.Validate(); err != ErrProcessedOutOfRange {
		t.Errorf("Expected error %v, got %v", ErrProcessedOutOfRange, err)
	}

	badStatus := valid
	badStatus.Status = JobStatus("bogus")
	if err := badStatus.Validate(); err != ErrInvalidJobStatus {
		t.Errorf("Expected error %v, got %v", ErrInvalidJobStatus, err)
	}
}

func TestJobIsComplete(t *testing.T) {
	t.Parallel() // Enable parallel execution
	job, err := NewJob(uuid.New(), 3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if job.IsComplete() {
		t.Error("Expected fresh job not to be complete")
	}

	job.Processed = 2
	if job.IsComplete() {
		t.Error("Expected partially processed job not to be complete")
	}

	job.Processed = 3
	if !job.IsComplete() {
		t.Error("Expected fully processed job to be complete")
	}
}

func TestRollupStatus(t *testing.T) {
	t.Parallel() // Enable parallel execution
	tests := []struct {
		name     string
		settled  int
		total    int
		current  JobStatus
		expected JobStatus
	}{
		{
			name:     "nothing settled keeps queued",
			settled:  0,
			total:    3,
			current:  JobStatusQueued,
			expected: JobStatusQueued,
		},
		{
			name:     "first settlement moves to processing",
			settled:  1,
			total:    3,
			current:  JobStatusQueued,
			expected: JobStatusProcessing,
		},
		{
			name:     "all settled completes",
			settled:  3,
			total:    3,
			current:  JobStatusProcessing,
			expected: JobStatusCompleted,
		},
		{
			name:     "all settled completes even when every item errored",
			settled:  2,
			total:    2,
			current:  JobStatusProcessing,
			expected: JobStatusCompleted,
		},
		{
			name:     "completed job stays completed on re-rollup",
			settled:  3,
			total:    3,
			current:  JobStatusCompleted,
			expected: JobStatusCompleted,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel() // Enable parallel execution
			got := RollupStatus(tc.settled, tc.total, tc.current)
			if got != tc.expected {
				t.Errorf("Expected status %v, got %v", tc.expected, got)
			}
		})
	}
}
