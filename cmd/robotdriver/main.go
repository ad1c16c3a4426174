// Package main provides the robotdriver CLI: logged-in product searches,
// free-text shopping goals, page snapshots and the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/robotdriver/pkg/config"
)

const version = "0.1.0"

var (
	configPath     string
	engine         string
	headless       bool
	contextService string
	verbose        bool
	writeReport    bool
	timeout        time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "robotdriver",
	Short: "Find products on shopping sites from the page's semantic context",
	Long: `robotdriver drives a browser to a shop, builds a semantic snapshot of the
page (accessibility tree plus interactive elements) and matches catalog
entries against what you are looking for.

Examples:
  robotdriver search "Sleeveless Dress"
  robotdriver goal "Find a blue dress on https://automationexercise.com/products"
  robotdriver snapshot https://automationexercise.com --engine rod
  robotdriver serve`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "Browser engine: playwright, rod or static")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run the browser without a window")
	rootCmd.PersistentFlags().StringVar(&contextService, "context-service", "", "Base URL of a remote context service")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&writeReport, "report", false, "Write a run report (JSON and Markdown)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout (0 disables)")

	searchCmd.Flags().StringVarP(&username, "username", "u", "", "Login email (or set "+config.EnvUsername+")")
	searchCmd.Flags().StringVarP(&password, "password", "p", "", "Login password (or set "+config.EnvPassword+")")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "Goals run at once (default 2)")
	snapshotCmd.Flags().StringVar(&htmlFile, "html", "", "Snapshot a saved HTML file instead of loading the URL")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
