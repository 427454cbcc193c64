package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/notiq/internal/adapter/output"
	"github.com/jmylchreest/notiq/internal/config"
	"github.com/jmylchreest/notiq/internal/model"
	"github.com/jmylchreest/notiq/internal/store"
)

var historyOpts struct {
	since    string
	limit    int
	kind     string
	order    string
	format   string
	template string
}

var pruneOpts struct {
	olderThan string
	keep      int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List notifications notiqd has accepted",
	Long: `List the notification history recorded by notiqd.

Defaults for --since, --limit and --format come from the [history]
section of the config file.

Examples:
  # Last day of task notifications as JSON
  notiq history --since 1d --type task -f json

  # Oldest first, custom line format
  notiq history --order asc --template '{{.Index}} {{.Notification.Title}} {{.RelativeTime}}'`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old notifications from history",
	Long: `Remove old notifications from the history file.

Examples:
  # Remove notifications older than 7 days
  notiq history prune --older-than 7d

  # Keep only the 100 most recent notifications
  notiq history prune --keep 100`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Only notifications newer than this (e.g., 48h, 7d, 1w, 0 for all)")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of notifications (0 = unlimited)")
	historyCmd.Flags().StringVar(&historyOpts.kind, "type", "",
		"Only notifications of this type")
	historyCmd.Flags().StringVar(&historyOpts.order, "order", "desc",
		"Sort by timestamp: asc or desc")
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "",
		"Output format: plain, json, yaml or ids")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Go template for plain output")

	historyPruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove notifications older than this duration (e.g., 48h, 7d, 1w)")
	historyPruneCmd.Flags().IntVar(&pruneOpts.keep, "keep", 0,
		"Keep only the N most recent notifications (0 = unlimited)")

	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	opts, format, err := historyOptions(cmd)
	if err != nil {
		return err
	}

	notifications, err := store.FilterHistory(historyPath(), opts)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	logger.Debug("history loaded", "count", len(notifications), "path", historyPath())

	fmtOpts := output.DefaultFormatterOptions()
	fmtOpts.Template = historyOpts.template
	return output.NewFormatter(format, fmtOpts).Format(cmd.OutOrStdout(), notifications)
}

// historyOptions merges flags over the configured history defaults.
func historyOptions(cmd *cobra.Command) (store.FilterOptions, output.FormatType, error) {
	since := cfg.History.Since
	if cmd.Flags().Changed("since") {
		since = historyOpts.since
	}
	sinceDur, err := config.ParseSince(since)
	if err != nil {
		return store.FilterOptions{}, "", err
	}

	limit := cfg.History.Limit
	if cmd.Flags().Changed("limit") {
		limit = historyOpts.limit
	}

	formatName := cfg.History.Format
	if cmd.Flags().Changed("format") {
		formatName = historyOpts.format
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return store.FilterOptions{}, "", err
	}

	order := strings.ToLower(historyOpts.order)
	if order != "asc" && order != "desc" {
		return store.FilterOptions{}, "", fmt.Errorf("invalid order %q, must be asc or desc", historyOpts.order)
	}

	return store.FilterOptions{
		Since: sinceDur,
		Kind:  model.Kind(strings.ToLower(strings.TrimSpace(historyOpts.kind))),
		Limit: limit,
		Order: order,
	}, format, nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneOpts.olderThan == "" && pruneOpts.keep == 0 {
		return fmt.Errorf("specify --older-than or --keep")
	}
	if pruneOpts.keep < 0 {
		return fmt.Errorf("--keep must not be negative")
	}

	olderThan, err := config.ParseSince(pruneOpts.olderThan)
	if err != nil {
		return err
	}

	persistence, err := store.NewJSONLPersistence(historyPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	history := store.NewStore(persistence)
	defer func() { _ = history.Close() }()

	if err := history.Hydrate(); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	removed, err := history.Prune(olderThan, pruneOpts.keep)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d notification(s), %d left\n", removed, history.Count())
	return nil
}
