// Package app wires together configuration, logging, and the tmq runtime
// for the tmqd command-line entry points.
package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/tmq/internal/config"
	"github.com/aussiebroadwan/tmq/pkg/slogx"
)

// Version information, set at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App holds dependencies shared by every tmqd subcommand.
type App struct {
	Config *config.Config
	Logger *slog.Logger
}

// New loads configuration and builds a logger for a subcommand.
func New(configPath, logLevel string, verbose bool) (*App, error) {
	effectiveLevel := logLevel
	if verbose && logLevel == "" {
		effectiveLevel = "debug"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if effectiveLevel != "" {
		cfg.Logging.Level = effectiveLevel
	}

	logger := slogx.New(
		slogx.WithLevel(slogx.ParseLevel(cfg.Logging.Level)),
		slogx.WithFormat(slogx.ParseFormat(cfg.Logging.Format)),
		slogx.WithService("tmqd"),
		slogx.WithVersion(Version),
	)

	logger.Info("application initialized",
		slog.String("version", Version),
		slog.String("log_level", cfg.Logging.Level),
	)

	return &App{Config: cfg, Logger: logger}, nil
}
