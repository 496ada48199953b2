package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextgen-mcp/analysis"
)

// stubTool runs fn for Execute.
type stubTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

func (s *stubTool) Name() string { return s.name }

func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return s.fn(ctx, args)
}

func newTestGateway(all ...Tool) *Gateway {
	registry := NewRegistry()
	for _, tool := range all {
		registry.Register(tool)
	}
	return NewGateway(registry, nil)
}

func TestGateway_InvokeSuccess(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&stubTool{name: "echo", fn: func(_ context.Context, args map[string]any) (string, error) {
		return fmt.Sprint(args["text"]), nil
	}})

	res := g.Invoke(context.Background(), "echo", map[string]any{"text": "hello"})

	assert.Nil(t, res.Error)
	assert.Equal(t, "hello", res.Text)
}

func TestGateway_ErrorsBecomeResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{name: "validation", err: &analysis.ValidationError{Field: "text", Message: "empty"}, code: CodeValidationFailed},
		{name: "timeout", err: &analysis.WorkflowTimeout{WorkflowID: "abc123", Elapsed: time.Minute}, code: CodeWorkflowTimeout, retryable: true},
		{name: "failed", err: &analysis.WorkflowFailed{WorkflowID: "abc123", Reason: "bad"}, code: CodeWorkflowFailed},
		{name: "remote 503", err: &analysis.RemoteError{StatusCode: 503}, code: CodeRemoteError, retryable: true},
		{name: "remote 401", err: &analysis.RemoteError{StatusCode: 401}, code: CodeRemoteError},
		{name: "remote transport", err: &analysis.RemoteError{Err: errors.New("eof")}, code: CodeRemoteError, retryable: true},
		{name: "exhausted", err: &analysis.OperationFailed{Label: "x", Attempts: 3, Err: errors.New("eof")}, code: CodeOperationFailed, retryable: true},
		{name: "canceled", err: fmt.Errorf("workflow abc123: %w", context.Canceled), code: CodeCanceled, retryable: true},
		{name: "other", err: errors.New("kaboom"), code: CodeInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := newTestGateway(&stubTool{name: "fail", fn: func(context.Context, map[string]any) (string, error) {
				return "", tt.err
			}})

			res := g.Invoke(context.Background(), "fail", nil)

			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.ErrorCode)
			assert.Equal(t, tt.retryable, res.Error.Retryable)
			assert.NotEmpty(t, res.Error.InvocationID)
			assert.Contains(t, res.Text, "ERROR ["+tt.code+"]")
		})
	}
}

func TestGateway_TimeoutTextNamesWorkflow(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&stubTool{name: "rewrite", fn: func(context.Context, map[string]any) (string, error) {
		return "", &analysis.WorkflowTimeout{WorkflowID: "abc123", Elapsed: time.Minute}
	}})

	res := g.Invoke(context.Background(), "rewrite", map[string]any{})

	require.NotNil(t, res.Error)
	assert.Equal(t, "abc123", res.Error.WorkflowID)
	assert.Contains(t, res.Text, `workflow_status with workflow_id "abc123"`)
}

func TestGateway_UnknownTool(t *testing.T) {
	t.Parallel()

	res := newTestGateway().Invoke(context.Background(), "translate", nil)

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeUnknownTool, res.Error.ErrorCode)
}

func TestGateway_RecoversPanics(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&stubTool{name: "boom", fn: func(context.Context, map[string]any) (string, error) {
		panic("nil map")
	}})

	res := g.Invoke(context.Background(), "boom", nil)

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInternal, res.Error.ErrorCode)
	assert.Contains(t, res.Error.Message, "nil map")
	assert.Equal(t, StateRunning, g.State())
}

func TestGateway_ShutdownDrainsInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	g := newTestGateway(&stubTool{name: "slow", fn: func(context.Context, map[string]any) (string, error) {
		close(started)
		<-release
		return "done", nil
	}})

	results := make(chan Result, 1)
	go func() {
		results <- g.Invoke(context.Background(), "slow", nil)
	}()
	<-started

	shutdownErr := make(chan error, 1)
	go func() {
		shutdownErr <- g.Shutdown(context.Background())
	}()

	require.Eventually(t, func() bool { return g.State() == StateDraining }, time.Second, time.Millisecond)

	rejected := g.Invoke(context.Background(), "slow", nil)
	require.NotNil(t, rejected.Error)
	assert.Equal(t, CodeShuttingDown, rejected.Error.ErrorCode)

	close(release)
	assert.Equal(t, "done", (<-results).Text)
	require.NoError(t, <-shutdownErr)
	assert.Equal(t, StateStopped, g.State())
}

func TestGateway_ShutdownGiveUpAfterGrace(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	g := newTestGateway(&stubTool{name: "stuck", fn: func(ctx context.Context, _ map[string]any) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}})

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	go g.Invoke(workCtx, "stuck", nil)
	<-started

	graceCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Shutdown(graceCtx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateStopped, g.State())
}

func TestRegistry_KeepsOrder(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	for _, name := range []string{"rewrite", "check", "suggestions", "check"} {
		registry.Register(&stubTool{name: name})
	}

	var names []string
	for _, tool := range registry.All() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"rewrite", "check", "suggestions"}, names)

	formatted := registry.ToOllamaFormat()
	require.Len(t, formatted, 3)
	assert.Equal(t, "function", formatted[0]["type"])
}
