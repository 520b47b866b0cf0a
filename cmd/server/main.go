// Package main is the entry point for the Unify API server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (config file, .env, environment)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/service, internal/provider, ...).
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/unify/internal/config"
	"github.com/sakif/unify/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// config.Load layers config.yaml, .env and UNIFY_* environment variables
	// over built-in defaults. Validate reports every problem at once.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Text output for terminals, JSON for log shippers.
	logger := newLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
