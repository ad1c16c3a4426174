package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/entrhq/robotdriver/pkg/browser"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/remote"
	"github.com/entrhq/robotdriver/pkg/report"
	"github.com/entrhq/robotdriver/pkg/snapshot"
)

// loadConfig layers the config file, the environment and the flags the user
// set explicitly, then validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Browser.Engine = config.Engine(engine)
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if flags.Changed("context-service") {
		cfg.ContextService.URL = contextService
	}
	if flags.Changed("verbose") && verbose {
		cfg.Logging.Verbosity = "debug"
	}
	if flags.Changed("report") {
		cfg.Report.Enabled = writeReport
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger applies the logging configuration and returns the CLI's logger.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logging.SetLogDirectory(cfg.Logging.Dir)
	if err := logging.SetVerbosity(cfg.Logging.Verbosity); err != nil {
		return nil, err
	}
	return logging.NewLogger("robotdriver")
}

// commandContext bounds ctx by the --timeout flag.
func commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func newBuilder(cfg *config.Config, logger *logging.Logger) *snapshot.Builder {
	return snapshot.NewBuilder(
		snapshot.WithMaxDepth(cfg.Snapshot.MaxDepth),
		snapshot.WithInteractiveSelector(cfg.Snapshot.InteractiveSelector),
		snapshot.WithLogger(logger),
	)
}

// newSource prefers the configured context service and falls back to local
// snapshots.
func newSource(cfg *config.Config, logger *logging.Logger) *remote.Source {
	var client *remote.Client
	if cfg.ContextService.URL != "" {
		client = remote.NewClient(cfg.ContextService.Timeout)
	}
	return remote.NewSource(client, cfg.ContextService.URL, newBuilder(cfg, logger), logger)
}

// withPool starts the configured engine for the duration of fn.
func withPool(ctx context.Context, cfg *config.Config, logger *logging.Logger, fn func(browser.Pool) error) error {
	pool, err := browser.NewPool(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to start %s engine: %w", cfg.Browser.Engine, err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warnf("closing browser: %v", err)
		}
	}()
	return fn(pool)
}

// finishReport writes run when reports are enabled.
func finishReport(cmd *cobra.Command, cfg *config.Config, run *report.Run) error {
	if !cfg.Report.Enabled {
		return nil
	}
	run.Finish()
	dir, err := report.NewWriter(cfg.Report).WriteAll(run)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", dir)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
