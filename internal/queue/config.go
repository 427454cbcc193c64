package queue

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default dedup windows.
const (
	DefaultPendingWindow = 500 * time.Millisecond
	DefaultRecentWindow  = 2000 * time.Millisecond
)

// Config controls the dedup guards.
type Config struct {
	// PendingWindow rejects near-simultaneous submissions of the same dedup key.
	PendingWindow time.Duration
	// RecentWindow rejects submissions whose dedup key matches a queued entry
	// created less than this long ago.
	RecentWindow time.Duration
}

// DefaultConfig returns the default dedup windows.
func DefaultConfig() Config {
	return Config{
		PendingWindow: DefaultPendingWindow,
		RecentWindow:  DefaultRecentWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.PendingWindow <= 0 {
		c.PendingWindow = DefaultPendingWindow
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = DefaultRecentWindow
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for timestamps and pending-key expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}
