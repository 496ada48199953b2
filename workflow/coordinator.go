// Package workflow drives a job from submission to a terminal state.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nextgen-mcp/analysis"
	"nextgen-mcp/logging"
	"nextgen-mcp/retry"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Submitter creates a job on the remote service.
type Submitter interface {
	Submit(ctx context.Context, kind analysis.JobKind, req analysis.JobRequest) (analysis.JobState, error)
}

// Poller fetches the state of a submitted job.
type Poller interface {
	Poll(ctx context.Context, handle analysis.JobHandle) (analysis.JobState, error)
}

// PollErrorPolicy decides what a failed status check does to the workflow.
type PollErrorPolicy int

const (
	// ContinueOnPollError logs the failure and keeps polling until the
	// deadline.
	ContinueOnPollError PollErrorPolicy = iota
	// AbortOnPollError returns the first poll failure.
	AbortOnPollError
)

func (p PollErrorPolicy) String() string {
	if p == AbortOnPollError {
		return "abort"
	}
	return "continue"
}

type Options struct {
	Submitter    Submitter
	Poller       Poller
	Timeout      time.Duration
	PollInterval time.Duration
	PollErrors   PollErrorPolicy
	Logger       *slog.Logger
}

// Coordinator owns one job lifecycle per Run call. It holds no per-job
// state, so concurrent Runs are independent.
type Coordinator struct {
	submitter    Submitter
	poller       Poller
	timeout      time.Duration
	pollInterval time.Duration
	pollErrors   PollErrorPolicy
	logger       *slog.Logger
	sleep        retry.SleepFunc
}

func New(opts Options) *Coordinator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		submitter:    opts.Submitter,
		poller:       opts.Poller,
		timeout:      timeout,
		pollInterval: interval,
		pollErrors:   opts.PollErrors,
		logger:       logger.With("component", "workflow"),
		sleep:        retry.SleepContext,
	}
}

// Run submits req under kind and waits for a terminal state. It returns
// *analysis.ValidationError, *analysis.RemoteError, *analysis.WorkflowTimeout
// or *analysis.WorkflowFailed on failure.
func (c *Coordinator) Run(ctx context.Context, kind analysis.JobKind, req analysis.JobRequest) (*analysis.JobResult, error) {
	state, err := c.submitter.Submit(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	c.logger.Info("workflow.submitted", "kind", string(kind), "workflow_id", state.Handle.ID, "status", string(state.Status))

	switch state.Status {
	case analysis.StatusSucceeded:
		return complete(state.Handle, state.Result), nil
	case analysis.StatusFailed:
		return nil, &analysis.WorkflowFailed{WorkflowID: state.Handle.ID, Reason: state.Reason}
	case analysis.StatusPending:
		return c.await(ctx, state.Handle)
	default:
		return nil, fmt.Errorf("submit returned unknown status %q", state.Status)
	}
}

// Status performs a single status check.
func (c *Coordinator) Status(ctx context.Context, handle analysis.JobHandle) (analysis.JobState, error) {
	state, err := c.poller.Poll(ctx, handle)
	if err != nil {
		return analysis.JobState{}, err
	}
	if state.Status == analysis.StatusSucceeded {
		state.Result = complete(handle, state.Result)
	}
	return state, nil
}

// await polls handle every pollInterval until a terminal state or the
// deadline. The deadline also bounds in-flight polls: one still running when
// it passes is abandoned and the timeout is reported at once.
func (c *Coordinator) await(ctx context.Context, handle analysis.JobHandle) (*analysis.JobResult, error) {
	start := time.Now()
	deadlineCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger := c.logger.With("workflow_id", handle.ID, "kind", string(handle.Kind))
	polls := 0

	for {
		if err := c.sleep(deadlineCtx, c.pollInterval); err != nil {
			return nil, c.stopped(ctx, handle, start)
		}
		if elapsed := time.Since(start); elapsed > c.timeout {
			return nil, &analysis.WorkflowTimeout{WorkflowID: handle.ID, Elapsed: elapsed}
		}

		polls++
		state, err := c.poller.Poll(deadlineCtx, handle)
		if err != nil {
			if deadlineCtx.Err() != nil {
				return nil, c.stopped(ctx, handle, start)
			}
			if c.pollErrors == AbortOnPollError {
				return nil, err
			}
			logger.Warn("workflow.poll_failed", "poll", polls, "elapsed_ms", time.Since(start).Milliseconds(), "error", err.Error())
			continue
		}

		switch state.Status {
		case analysis.StatusPending:
			logger.Debug("workflow.pending", "poll", polls, "elapsed_ms", time.Since(start).Milliseconds())
		case analysis.StatusSucceeded:
			logger.Info("workflow.completed", "polls", polls, "elapsed_ms", time.Since(start).Milliseconds())
			return complete(handle, state.Result), nil
		case analysis.StatusFailed:
			logger.Warn("workflow.failed", "polls", polls, "reason", state.Reason)
			return nil, &analysis.WorkflowFailed{WorkflowID: handle.ID, Reason: state.Reason}
		default:
			logger.Warn("workflow.unknown_status", "status", string(state.Status))
		}
	}
}

// stopped distinguishes caller cancellation from the workflow deadline.
func (c *Coordinator) stopped(ctx context.Context, handle analysis.JobHandle, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("workflow %s: %w", handle.ID, err)
	}
	elapsed := time.Since(start)
	c.logger.Warn("workflow.timeout", "workflow_id", handle.ID, "elapsed_ms", elapsed.Milliseconds(), "timeout_ms", c.timeout.Milliseconds())
	return &analysis.WorkflowTimeout{WorkflowID: handle.ID, Elapsed: elapsed}
}

// complete backfills the workflow id so callers can always correlate.
func complete(handle analysis.JobHandle, result *analysis.JobResult) *analysis.JobResult {
	if result == nil {
		result = &analysis.JobResult{}
	}
	if result.WorkflowID == "" {
		result.WorkflowID = handle.ID
	}
	return result
}
