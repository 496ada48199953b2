package analysis

import (
	"fmt"
	"time"
)

// ValidationError reports bad caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// OperationFailed wraps the last failure of an operation that exhausted its
// retry attempts.
type OperationFailed struct {
	Label    string
	Attempts int
	Err      error
}

func (e *OperationFailed) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

func (e *OperationFailed) Unwrap() error {
	return e.Err
}

// RemoteError is a non-success HTTP response or a transport failure
// (StatusCode 0).
type RemoteError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("remote request failed: %v", e.Err)
		}
		return "remote request failed"
	}
	if e.Body == "" {
		return fmt.Sprintf("remote returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// WorkflowTimeout means polling exceeded the deadline. The remote job may
// still be running.
type WorkflowTimeout struct {
	WorkflowID string
	Elapsed    time.Duration
}

func (e *WorkflowTimeout) Error() string {
	return fmt.Sprintf("workflow %s timed out after %s", e.WorkflowID, e.Elapsed.Round(time.Millisecond))
}

// WorkflowFailed carries the failure reason reported by the remote service.
type WorkflowFailed struct {
	WorkflowID string
	Reason     string
}

func (e *WorkflowFailed) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no reason given"
	}
	if e.WorkflowID == "" {
		return "workflow failed: " + reason
	}
	return fmt.Sprintf("workflow %s failed: %s", e.WorkflowID, reason)
}
