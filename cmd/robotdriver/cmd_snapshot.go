package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/robotdriver/pkg/browser"
	"github.com/entrhq/robotdriver/pkg/driver"
	"github.com/entrhq/robotdriver/pkg/htmlpage"
	"github.com/entrhq/robotdriver/pkg/remote"
	"github.com/entrhq/robotdriver/pkg/server"
	"github.com/entrhq/robotdriver/pkg/snapshot"
)

var htmlFile string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <url>",
	Short: "Print the semantic snapshot of a page as JSON",
	Long: `Loads the page and prints its snapshot: accessibility elements followed by
interactive elements. With --html the saved file is snapshotted offline and the
URL is only recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (/health, /context, /search, /goal)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// snapshotOutput is what the snapshot command prints.
type snapshotOutput struct {
	Origin   remote.Origin         `json:"origin"`
	Snapshot snapshot.PageSnapshot `json:"snapshot"`
	Warnings []string              `json:"warnings,omitempty"`
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	emit := func(snap snapshot.PageSnapshot, origin remote.Origin, warnings []snapshot.Warning) error {
		out := snapshotOutput{Origin: origin, Snapshot: snap}
		for _, w := range warnings {
			out.Warnings = append(out.Warnings, w.String())
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	if htmlFile != "" {
		p, err := htmlpage.Load(htmlFile, args[0])
		if err != nil {
			return err
		}
		snap, warnings := newBuilder(cfg, logger).Build(ctx, p)
		return emit(snap, remote.OriginLocal, warnings)
	}

	return withPool(ctx, cfg, logger, func(pool browser.Pool) error {
		nav, release, err := pool.Open(ctx)
		if err != nil {
			return err
		}
		defer release()

		if err := nav.Goto(ctx, args[0], cfg.Browser.Timeout); err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		snap, origin, warnings := newSource(cfg, logger).Snapshot(ctx, nav)
		return emit(snap, origin, warnings)
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	return withPool(ctx, cfg, logger, func(pool browser.Pool) error {
		search, err := driver.NewRobotDriver(cfg, pool, logger)
		if err != nil {
			return err
		}
		goals, err := driver.NewGoalRunner(cfg, pool, newSource(cfg, logger), logger)
		if err != nil {
			return err
		}

		// /context always builds locally so instances never forward to each other
		api := server.New(server.Options{
			Search:       search,
			Goals:        goals,
			Pages:        pool,
			Builder:      newBuilder(cfg, logger),
			Logger:       logger,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		})
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Infof("listening on %s (%s engine)", cfg.Server.Addr, pool.Engine())
			errCh <- srv.ListenAndServe()
		}()
		fmt.Fprintf(cmd.ErrOrStderr(), "robotdriver listening on %s\n", cfg.Server.Addr)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Infof("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
}
