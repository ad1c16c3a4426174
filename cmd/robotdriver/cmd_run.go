package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/robotdriver/pkg/browser"
	"github.com/entrhq/robotdriver/pkg/driver"
	"github.com/entrhq/robotdriver/pkg/report"
)

var (
	username   string
	password   string
	batchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <product>",
	Short: "Log into the store and look a product up",
	Long: `Logs into the configured store, searches its catalog for the product and
prints the match as JSON.

Credentials come from --username/--password, the ROBOTDRIVER_USERNAME and
ROBOTDRIVER_PASSWORD environment variables, or the site section of the config.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var goalCmd = &cobra.Command{
	Use:   "goal <text>",
	Short: "Pursue a free-text shopping goal",
	Long: `Parses a goal such as "Find a blue dress on https://shop.example", opens the
site, finds its search box from the page snapshot and matches the results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Pursue every goal listed in a file (one per line, - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	creds := driver.Credentials{Username: cfg.Site.Username, Password: cfg.Site.Password}
	if username != "" {
		creds.Username = username
	}
	if password != "" {
		creds.Password = password
	}
	if creds.Username == "" || creds.Password == "" {
		return errors.New("credentials required: use --username/--password or the environment")
	}
	product := strings.TrimSpace(strings.Join(args, " "))

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	run := report.NewRun("search " + product)
	return withPool(ctx, cfg, logger, func(pool browser.Pool) error {
		d, err := driver.NewRobotDriver(cfg, pool, logger)
		if err != nil {
			return err
		}
		start := time.Now()
		res := d.Run(ctx, creds, product)
		run.Add(report.SearchEntry(product, res, time.Since(start)))

		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return finishReport(cmd, cfg, run)
	})
}

func runGoal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	text := strings.Join(args, " ")
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	run := report.NewRun("goal")
	return withPool(ctx, cfg, logger, func(pool browser.Pool) error {
		runner, err := driver.NewGoalRunner(cfg, pool, newSource(cfg, logger), logger)
		if err != nil {
			return err
		}
		out, runErr := runner.Run(ctx, text)
		run.Add(report.GoalEntry(out))
		if runErr != nil {
			return runErr
		}

		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		return finishReport(cmd, cfg, run)
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	goals, err := readGoals(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		return fmt.Errorf("no goals in %s", args[0])
	}

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

	run := report.NewRun("batch " + args[0])
	return withPool(ctx, cfg, logger, func(pool browser.Pool) error {
		runner, err := driver.NewGoalRunner(cfg, pool, newSource(cfg, logger), logger)
		if err != nil {
			return err
		}
		outcomes := driver.RunGoals(ctx, runner, goals, batchLimit)
		for _, out := range outcomes {
			run.Add(report.GoalEntry(out))
		}

		if err := printJSON(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}
		return finishReport(cmd, cfg, run)
	})
}

// readGoals reads one goal per line, skipping blank lines and # comments.
func readGoals(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open goals file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var goals []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		goals = append(goals, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read goals: %w", err)
	}
	return goals, nil
}
