package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nextgen-mcp/analysis"
)

// ErrShuttingDown is returned for invocations arriving after Shutdown began.
var ErrShuttingDown = errors.New("server is shutting down")

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRemoteError      = "REMOTE_ERROR"
	CodeOperationFailed  = "OPERATION_FAILED"
	CodeWorkflowTimeout  = "WORKFLOW_TIMEOUT"
	CodeWorkflowFailed   = "WORKFLOW_FAILED"
	CodeShuttingDown     = "SHUTTING_DOWN"
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeCanceled         = "CANCELED"
	CodeInternal         = "INTERNAL"
)

// ErrorInfo is the structured error payload returned to the calling agent.
type ErrorInfo struct {
	ErrorCode    string `json:"error_code"`
	Message      string `json:"message"`
	Retryable    bool   `json:"retryable"`
	WorkflowID   string `json:"workflow_id,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
}

// Text renders the error as the textual tool response.
func (e *ErrorInfo) Text() string {
	text := fmt.Sprintf("ERROR [%s]: %s", e.ErrorCode, e.Message)
	switch e.ErrorCode {
	case CodeWorkflowTimeout:
		if e.WorkflowID != "" {
			text += fmt.Sprintf("\nThe workflow may still finish. Call workflow_status with workflow_id %q to check.", e.WorkflowID)
		}
	case CodeValidationFailed:
		text += "\nFix the arguments and try again."
	}
	return text
}

// Classify maps an error from a tool into an ErrorInfo. A remote attempt that
// hit its own deadline stays a REMOTE_ERROR; caller cancellation is detected
// by Gateway.Invoke from the caller's context.
func Classify(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{ErrorCode: CodeInternal, Message: err.Error()}

	var (
		validation *analysis.ValidationError
		timeout    *analysis.WorkflowTimeout
		failed     *analysis.WorkflowFailed
		remote     *analysis.RemoteError
		opFailed   *analysis.OperationFailed
	)
	switch {
	case errors.As(err, &validation):
		info.ErrorCode = CodeValidationFailed
	case errors.As(err, &timeout):
		info.ErrorCode = CodeWorkflowTimeout
		info.Retryable = true
		info.WorkflowID = timeout.WorkflowID
	case errors.As(err, &failed):
		info.ErrorCode = CodeWorkflowFailed
		info.WorkflowID = failed.WorkflowID
	case errors.Is(err, ErrShuttingDown):
		info.ErrorCode = CodeShuttingDown
		info.Retryable = true
	case errors.As(err, &remote):
		info.ErrorCode = CodeRemoteError
		info.StatusCode = remote.StatusCode
		info.Retryable = remote.StatusCode == 0 ||
			remote.StatusCode == http.StatusTooManyRequests ||
			remote.StatusCode >= http.StatusInternalServerError
	case errors.As(err, &opFailed):
		info.ErrorCode = CodeOperationFailed
		info.Retryable = true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		info.ErrorCode = CodeCanceled
		info.Retryable = true
	}
	return info
}
