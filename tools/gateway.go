package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nextgen-mcp/logging"
)

// State is the gateway lifecycle state.
type State string

const (
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Result is the outcome of one invocation. Text is always set; Error is set
// when the invocation failed and Text then holds the error report.
type Result struct {
	Text  string
	Error *ErrorInfo
}

// Gateway dispatches tool invocations and converts every failure into a
// Result, so callers never see a Go error or a panic.
type Gateway struct {
	registry *Registry
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	inflight sync.WaitGroup
}

func NewGateway(registry *Registry, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gateway{
		registry: registry,
		logger:   logger.With("component", "gateway"),
		state:    StateRunning,
	}
}

// Tools lists the registered tools.
func (g *Gateway) Tools() []Tool {
	return g.registry.All()
}

// Registry exposes the underlying registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// State reports the lifecycle state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Invoke runs the named tool.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) (res Result) {
	invocationID := uuid.NewString()
	logger := g.logger.With("invocation_id", invocationID, "tool", name)

	if !g.begin() {
		logger.Warn("gateway.rejected", "state", string(g.State()))
		return g.fail(Classify(ErrShuttingDown), invocationID)
	}
	defer g.inflight.Done()

	tool, ok := g.registry.Get(name)
	if !ok {
		logger.Warn("gateway.unknown_tool")
		return g.fail(&ErrorInfo{ErrorCode: CodeUnknownTool, Message: fmt.Sprintf("unknown tool: %s", name)}, invocationID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("gateway.panic", "panic", fmt.Sprint(r))
			res = g.fail(&ErrorInfo{ErrorCode: CodeInternal, Message: fmt.Sprintf("internal error: %v", r)}, invocationID)
		}
	}()

	start := time.Now()
	logger.Info("gateway.invoke", "args", logging.RedactArgs(args))
	text, err := tool.Execute(ctx, args)
	if err != nil {
		info := Classify(err)
		if ctx.Err() != nil && info.ErrorCode != CodeValidationFailed {
			info.ErrorCode = CodeCanceled
			info.Retryable = true
		}
		logger.Warn("gateway.invoke_failed",
			"error_code", info.ErrorCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return g.fail(info, invocationID)
	}
	logger.Info("gateway.invoke_complete", "duration_ms", time.Since(start).Milliseconds(), "chars", len(text))
	return Result{Text: text}
}

// Shutdown stops accepting invocations and waits for in-flight ones until
// ctx is done. Invocations still running afterwards are abandoned.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.state == StateStopped {
		g.mu.Unlock()
		return nil
	}
	g.state = StateDraining
	g.mu.Unlock()
	g.logger.Info("gateway.draining")

	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		g.logger.Warn("gateway.drain_abandoned", "error", err.Error())
	}

	g.mu.Lock()
	g.state = StateStopped
	g.mu.Unlock()
	g.logger.Info("gateway.stopped")
	return err
}

// begin registers an invocation while the gateway is running. The state
// check and Add share the lock so Shutdown never waits on a late Add.
func (g *Gateway) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateRunning {
		return false
	}
	g.inflight.Add(1)
	return true
}

func (g *Gateway) fail(info *ErrorInfo, invocationID string) Result {
	info.InvocationID = invocationID
	return Result{Text: info.Text(), Error: info}
}
