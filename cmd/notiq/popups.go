package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/notiq/internal/config"
	"github.com/jmylchreest/notiq/internal/store"
)

var popupsOpts struct {
	quiet bool // Suppress output, return exit code only
}

// popupsCmd represents the popups command group.
var popupsCmd = &cobra.Command{
	Use:   "popups",
	Short: "Turn notification popups on or off",
	Long: `Turn notiqd's notification popups on or off.

While popups are off notiqd keeps queueing and recording notifications but
does not display them. The choice is stored in the preferences file and
picked up by a running notiqd immediately.

The status and toggle subcommands exit with 1 when popups end up off, so
they can drive status bars with --quiet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return popupsStatusRun(cmd, args)
	},
}

var popupsOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Show notification popups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPopups(cmd.OutOrStdout(), true)
	},
}

var popupsOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Hide notification popups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPopups(cmd.OutOrStdout(), false)
	},
}

var popupsToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle notification popups",
	RunE:  popupsToggleRun,
}

var popupsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether popups are on",
	RunE:  popupsStatusRun,
}

func init() {
	popupsCmd.AddCommand(popupsOnCmd)
	popupsCmd.AddCommand(popupsOffCmd)
	popupsCmd.AddCommand(popupsToggleCmd)
	popupsCmd.AddCommand(popupsStatusCmd)

	popupsCmd.PersistentFlags().BoolVarP(&popupsOpts.quiet, "quiet", "q", false,
		"Suppress output, return exit code only (0=on, 1=off)")

	rootCmd.AddCommand(popupsCmd)
}

func setPopups(w io.Writer, enabled bool) error {
	src, err := store.NewPreferenceSource(config.PreferencesPath())
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := src.SetPopups(enabled, "cli"); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	if !popupsOpts.quiet {
		fmt.Fprintln(w, popupsLine(enabled))
	}
	return nil
}

func popupsToggleRun(cmd *cobra.Command, args []string) error {
	src, err := store.NewPreferenceSource(config.PreferencesPath())
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	enabled := !src.PopupsOn()
	if err := src.SetPopups(enabled, "cli"); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	if !popupsOpts.quiet {
		fmt.Fprintln(cmd.OutOrStdout(), popupsLine(enabled))
	}
	if !enabled {
		os.Exit(1)
	}
	return nil
}

func popupsStatusRun(cmd *cobra.Command, args []string) error {
	prefs, err := store.LoadPreferences(config.PreferencesPath())
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	if !popupsOpts.quiet {
		writePopupsStatus(cmd.OutOrStdout(), prefs, time.Now())
	}
	if !prefs.PopupsOn() {
		os.Exit(1)
	}
	return nil
}

func writePopupsStatus(w io.Writer, prefs *store.Preferences, now time.Time) {
	fmt.Fprintln(w, popupsLine(prefs.PopupsOn()))
	if prefs.UpdatedAt == 0 {
		return
	}
	changed := humanize.RelTime(time.Unix(prefs.UpdatedAt, 0), now, "ago", "from now")
	fmt.Fprintf(w, "  Last change: %s\n", changed)
	if prefs.UpdatedBy != "" {
		fmt.Fprintf(w, "  Changed by: %s\n", prefs.UpdatedBy)
	}
}

func popupsLine(enabled bool) string {
	if enabled {
		return "Popups: on"
	}
	return "Popups: off"
}
