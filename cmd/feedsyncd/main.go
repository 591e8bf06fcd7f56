// cmd/feedsyncd/main.go
// Package main implements the entry point for the feed sync agent.
// It wires the engine from configuration and serves the local control API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/config"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/engine"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/server"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// main is the entry point for the feed sync agent.
// It initializes all components, starts the HTTP server, and handles graceful shutdown.
func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	if _, err := telemetry.InitTracer("feedsyncd", version, cfg.Env == "dev"); err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx)
	}()

	// Build the engine: backend client, media presigning, push channel, snapshot store
	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	eng, err := engine.FromConfig(initCtx, cfg, logger)
	cancelInit()
	if err != nil {
		logger.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}
	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// Create HTTP server with timeout configuration
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewMux(eng, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start server in a separate goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
		exitCode = 1
	}

	// Handle graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		exitCode = 1
	}

	// Flushes the pending notification snapshot and closes the store
	eng.Close()

	logger.Info("server exited")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
