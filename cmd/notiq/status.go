package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/notiq/internal/config"
	"github.com/jmylchreest/notiq/internal/dbus"
	"github.com/jmylchreest/notiq/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which notification server owns the bus and the popup state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()

	client, err := dbus.NewClient("notiq")
	if err != nil {
		fmt.Fprintln(w, "Server: unavailable (no session bus)")
		logger.Debug("session bus connect failed", "error", err)
	} else {
		defer func() { _ = client.Close() }()
		info, err := client.ServerInformation(ctx)
		if err != nil {
			fmt.Fprintln(w, "Server: not running")
			logger.Debug("server information failed", "error", err)
		} else {
			fmt.Fprintf(w, "Server: %s %s (%s, spec %s)\n", info.Name, info.Version, info.Vendor, info.SpecVersion)
		}
	}

	prefs, err := store.LoadPreferences(config.PreferencesPath())
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	writePopupsStatus(w, prefs, time.Now())
	return nil
}
