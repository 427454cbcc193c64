// Package main is the entry point for the notiqd notification daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmylchreest/notiq/internal/config"
	"github.com/jmylchreest/notiq/internal/daemon"
	"github.com/jmylchreest/notiq/internal/dbus"
	"github.com/jmylchreest/notiq/internal/tui"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	headless := flag.Bool("headless", false, "Run without the terminal UI; frames are logged")
	monitorMode := flag.Bool("monitor", false, "Observe Notify calls passively instead of owning the bus name")
	configPath := flag.String("config", "", "Path to notiqd.toml (default: $XDG_CONFIG_HOME/notiq/notiqd.toml)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("notiqd version", version)
		os.Exit(0)
	}

	if err := config.EnsureDataDir(); err != nil {
		fmt.Fprintln(os.Stderr, "notiqd:", err)
		os.Exit(1)
	}

	logOutput, closeLog := logDestination(*headless)
	defer closeLog()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *headless, *monitorMode); err != nil {
		logger.Error("notiqd failed", "error", err)
		if !*headless {
			fmt.Fprintln(os.Stderr, "notiqd:", err)
		}
		os.Exit(1)
	}
}

// logDestination keeps the terminal clean while the UI owns it.
func logDestination(headless bool) (io.Writer, func()) {
	if headless {
		return os.Stderr, func() {}
	}
	f, err := os.OpenFile(filepath.Join(config.DataPath(), "notiqd.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}

func run(logger *slog.Logger, configPath string, headless, monitorMode bool) error {
	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return err
	}
	if monitorMode {
		cfg.Transport.DBus = false
	}

	opts := daemon.Options{
		ConfigPath: configPath,
		Version:    version,
		Logger:     logger,
	}
	var host *tui.Host
	if !headless {
		host = tui.NewHost()
		opts.Sink = host
		opts.Navigator = host
	}

	d, err := daemon.New(cfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		d.Stop()
		return err
	}
	defer d.Stop()

	if monitorMode {
		monitor := dbus.NewMonitor(logger.With("component", "monitor"))
		monitor.SetNotifyHandler(func(n *dbus.DBusNotification) {
			d.Submit(n.ToNotification())
		})
		if err := monitor.Start(); err != nil {
			return fmt.Errorf("failed to start D-Bus monitor: %w", err)
		}
		defer func() { _ = monitor.Stop() }()
	}

	if headless {
		<-ctx.Done()
		logger.Info("shutting down", "reason", context.Cause(ctx))
		return nil
	}

	return tui.Run(ctx, tui.RunOptions{
		Host:       host,
		Controller: d,
		AltScreen:  true,
	})
}
