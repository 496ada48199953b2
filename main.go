package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nextgen-mcp/analysis"
	"nextgen-mcp/config"
	"nextgen-mcp/logging"
	"nextgen-mcp/remote"
	"nextgen-mcp/report"
	"nextgen-mcp/retry"
	"nextgen-mcp/rpc"
	"nextgen-mcp/tools"
	"nextgen-mcp/workflow"
)

const (
	serverName    = "nextgen-mcp"
	serverVersion = "0.1.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Debug).With("service", serverName)
	logger.Info("server.starting",
		"transport", cfg.Transport,
		"base_url", cfg.BaseURL,
		"api_key", logging.RedactValue(cfg.APIKey),
		"workflow_timeout_ms", cfg.WorkflowTimeoutMS,
		"poll_interval_ms", cfg.PollIntervalMS,
		"max_retries", cfg.MaxRetries,
	)

	// Set up context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tool executions run on workCtx so a signal stops intake without
	// cancelling jobs that are already in flight.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	gateway := newGateway(cfg, logger)
	logger.Info("server.tools_registered", "count", len(gateway.Tools()))

	var (
		serveErr error
		server   *rpc.Server
	)
	switch cfg.Transport {
	case config.TransportTelegram:
		serveErr = runTelegram(ctx, workCtx, cfg, gateway, logger)
	default:
		server = rpc.NewServer(os.Stdin, os.Stdout, logger)
		rpc.RegisterTools(server, gateway, rpc.ServerInfo{Name: serverName, Version: serverVersion})
		serveErr = runStdio(ctx, workCtx, server, logger)
	}

	shutdown(cfg.ShutdownGrace(), gateway, server, logger)
	cancelWork()

	if serveErr != nil {
		logger.Error("server.stopped_with_error", "error", serveErr.Error())
		os.Exit(1)
	}
	logger.Info("server.stopped")
}

// newGateway wires the retrier, remote client, coordinator and tools.
func newGateway(cfg *config.Config, logger *slog.Logger) *tools.Gateway {
	retrier := retry.New(cfg.MaxRetries, cfg.RetryBaseDelay(), logger.With("component", "retry"))
	client := remote.NewClient(remote.Options{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Timeout:       cfg.HTTPTimeout(),
		MaxTextLength: cfg.MaxTextLength,
		Retrier:       retrier,
		Logger:        logger,
		Debug:         cfg.Debug,
	})
	coordinator := workflow.New(workflow.Options{
		Submitter:    client,
		Poller:       client,
		Timeout:      cfg.WorkflowTimeout(),
		PollInterval: cfg.PollInterval(),
		PollErrors:   workflow.ContinueOnPollError,
		Logger:       logger,
	})

	opts := report.Options{Debug: cfg.Debug}
	defaults := tools.Defaults{
		Dialect:    cfg.DefaultDialect,
		Tone:       cfg.DefaultTone,
		StyleGuide: cfg.DefaultStyleGuide,
	}

	registry := tools.NewRegistry()
	for _, kind := range analysis.Kinds {
		registry.Register(tools.NewAnalysisTool(kind, coordinator, defaults, opts))
	}
	registry.Register(tools.NewStatusTool(coordinator, opts))

	return tools.NewGateway(registry, logger)
}

// runStdio serves the tool protocol until the client closes its input or a
// termination signal arrives.
func runStdio(ctx, workCtx context.Context, server *rpc.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(workCtx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("server.signal_received")
		return nil
	case err := <-errCh:
		if err == nil {
			logger.Info("server.client_disconnected")
		}
		return err
	}
}

// shutdown stops tool intake, then waits for in-flight replies to be written.
// Both steps share one grace period. server may be nil.
func shutdown(grace time.Duration, gateway *tools.Gateway, server *rpc.Server, logger *slog.Logger) {
	graceCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := gateway.Shutdown(graceCtx); err != nil {
		logger.Warn("server.shutdown_incomplete", "error", err.Error())
	}
	if server == nil {
		return
	}
	if err := server.Wait(graceCtx); err != nil {
		logger.Warn("server.replies_abandoned", "error", err.Error())
	}
}
