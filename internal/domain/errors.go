package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing durable record.
	ErrNotFound = errors.New("not found")
	// ErrTimedOut signals that the polling attempt cap was exhausted
	// without a terminal provider state.
	ErrTimedOut = errors.New("generation timed out")
)

// UploadError indicates the asset transfer to the upload collaborator
// failed; no provider task was created.
type UploadError struct {
	Status int
	Err    error
}

func (e *UploadError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upload failed with status %d", e.Status)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TaskCreationError indicates the provider rejected the task creation
// request or returned no task id.
type TaskCreationError struct {
	Status  int
	Message string
	Err     error
}

func (e *TaskCreationError) Error() string {
	if e.Message != "" {
		return "task creation failed: " + e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("task creation failed with status %d", e.Status)
	}
	return fmt.Sprintf("task creation failed: %v", e.Err)
}

func (e *TaskCreationError) Unwrap() error { return e.Err }

// PollingNetworkError indicates a status check itself failed. It is fatal
// for the job; individual attempts are not retried.
type PollingNetworkError struct {
	Attempt int
	Err     error
}

func (e *PollingNetworkError) Error() string {
	return fmt.Sprintf("status check failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *PollingNetworkError) Unwrap() error { return e.Err }

// MalformedResultError indicates the provider reported success without an
// extractable output URL.
type MalformedResultError struct {
	TaskID string
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("provider result for task %s carries no output url", e.TaskID)
}
