// Package retry runs an operation repeatedly with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nextgen-mcp/analysis"
	"nextgen-mcp/logging"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier holds the retry policy. Every failure is retried the same way.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
	Sleep       SleepFunc
}

// New creates a Retrier, substituting defaults for non-positive values.
func New(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Logger:      logger,
		Sleep:       SleepContext,
	}
}

// Delay returns the wait before the attempt following attemptIndex (0-based).
func Delay(base time.Duration, attemptIndex int) time.Duration {
	if attemptIndex <= 0 {
		return base
	}
	if attemptIndex > 30 {
		attemptIndex = 30
	}
	return base * time.Duration(1<<uint(attemptIndex))
}

// Do attempts op up to r.MaxAttempts times, waiting BaseDelay*2^i after the
// i-th failure. It never waits after the final attempt. Exhaustion returns
// *analysis.OperationFailed wrapping the last error.
func Do[T any](ctx context.Context, r *Retrier, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		r = New(0, DefaultBaseDelay, nil)
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			logger.Debug("retry.attempt_succeeded", "label", label, "attempt", attempt+1, "max_attempts", attempts)
			return value, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			logger.Warn("retry.attempt_failed", "label", label, "attempt", attempt+1, "max_attempts", attempts, "error", err.Error())
			break
		}

		wait := Delay(r.BaseDelay, attempt)
		logger.Warn("retry.attempt_failed",
			"label", label,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"next_delay_ms", wait.Milliseconds(),
			"error", err.Error(),
		)
		if err := sleep(ctx, wait); err != nil {
			return zero, &analysis.OperationFailed{
				Label:    label,
				Attempts: attempt + 1,
				Err:      fmt.Errorf("%w (last error: %v)", err, lastErr),
			}
		}
	}

	return zero, &analysis.OperationFailed{Label: label, Attempts: attempts, Err: lastErr}
}

// SleepContext blocks for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
