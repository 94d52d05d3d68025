package feed

import (
	"fmt"
	"time"
)

// Event statuses.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// ChangeEvent describes one mutation the write queue has finished applying, or
// failing to apply, to the graph.
type ChangeEvent struct {
	// ID is a UUID unique to this event
	ID string `json:"id"`

	// RequestID correlates the event with the pending result the submitter holds
	RequestID string `json:"request_id"`

	// Operation is the store operation name (e.g. "AddTranscript")
	Operation string `json:"operation"`

	// Status is StatusApplied or StatusFailed
	Status string `json:"status"`

	// Error is the error message if the operation failed
	// Empty if the operation was applied
	Error string `json:"error,omitempty"`

	// StartedAt is the Unix timestamp in milliseconds when the worker started the operation
	StartedAt int64 `json:"started_at"`

	// CompletedAt is the Unix timestamp in milliseconds when the operation finished
	CompletedAt int64 `json:"completed_at"`
}

// HasError returns true if the event describes a failed operation.
func (e *ChangeEvent) HasError() bool {
	return e.Error != ""
}

// Duration returns how long the worker spent on the operation.
func (e *ChangeEvent) Duration() time.Duration {
	if e.StartedAt <= 0 || e.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(e.CompletedAt-e.StartedAt) * time.Millisecond
}

// IsValid checks if the ChangeEvent has all required fields populated correctly.
func (e *ChangeEvent) IsValid() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if e.Operation == "" {
		return fmt.Errorf("operation is required")
	}
	switch e.Status {
	case StatusApplied:
		if e.HasError() {
			return fmt.Errorf("applied event cannot carry an error")
		}
	case StatusFailed:
		if !e.HasError() {
			return fmt.Errorf("failed event requires an error")
		}
	default:
		return fmt.Errorf("unknown status %q", e.Status)
	}
	if e.StartedAt <= 0 {
		return fmt.Errorf("started_at must be positive, got %d", e.StartedAt)
	}
	if e.CompletedAt < e.StartedAt {
		return fmt.Errorf("completed_at (%d) cannot be before started_at (%d)", e.CompletedAt, e.StartedAt)
	}
	return nil
}
