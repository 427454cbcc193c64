package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/notiq/internal/model"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "500ms", "10s", "1m", or integer milliseconds.
// For timeouts a value of "0" or 0 means never expire.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '500ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int {
	return int(time.Duration(d).Milliseconds())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for notiqd.
// Loaded from ~/.config/notiq/notiqd.toml
type DaemonConfig struct {
	Queue      QueueConfig      `toml:"queue"`
	Display    DisplayConfig    `toml:"display"`
	Timeouts   TimeoutConfig    `toml:"timeouts"`
	Navigation NavigationConfig `toml:"navigation"`
	Transport  TransportConfig  `toml:"transport"`
	Internal   InternalConfig   `toml:"internal"`
}

// QueueConfig contains the dedup windows.
type QueueConfig struct {
	PendingWindow Duration `toml:"pending_window"` // Debounce for identical submissions
	RecentWindow  Duration `toml:"recent_window"`  // Dedup window against queued entries
}

// DisplayConfig contains stack layout settings.
type DisplayConfig struct {
	MaxVisible int `toml:"max_visible"` // Maximum simultaneously placed items
	OffsetY    int `toml:"offset_y"`    // Offset of the first item
	ItemHeight int `toml:"item_height"` // Height of one item
	Gap        int `toml:"gap"`         // Gap between stacked items
}

// TimeoutConfig contains auto-hide settings per priority.
// A value of "0" or 0 means never expire.
type TimeoutConfig struct {
	Low    Duration `toml:"low"`
	Normal Duration `toml:"normal"`
	High   Duration `toml:"high"`
}

// NavigationConfig contains retry settings for routing tapped notifications.
type NavigationConfig struct {
	RetryDelay  Duration `toml:"retry_delay"`
	MaxAttempts int      `toml:"max_attempts"`
}

// TransportConfig selects the push transports.
type TransportConfig struct {
	DBus bool `toml:"dbus"` // Own org.freedesktop.Notifications on the session bus
}

// InternalConfig controls notifications the daemon sends about itself.
type InternalConfig struct {
	Enabled     bool     `toml:"enabled"`
	MinInterval Duration `toml:"min_interval"` // Rate limit per message key
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Queue: QueueConfig{
			PendingWindow: Duration(500 * time.Millisecond),
			RecentWindow:  Duration(2000 * time.Millisecond),
		},
		Display: DisplayConfig{
			MaxVisible: 5,
			OffsetY:    1,
			ItemHeight: 3,
			Gap:        1,
		},
		Timeouts: TimeoutConfig{
			Low:    Duration(5 * time.Second),
			Normal: Duration(10 * time.Second),
			High:   Duration(0), // Never expires
		},
		Navigation: NavigationConfig{
			RetryDelay:  Duration(1000 * time.Millisecond),
			MaxAttempts: 5,
		},
		Transport: TransportConfig{
			DBus: true,
		},
		Internal: InternalConfig{
			Enabled:     true,
			MinInterval: Duration(10 * time.Second),
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() string {
	return filepath.Join(configHome(), "notiq", "notiqd.toml")
}

// LoadDaemonConfig loads the daemon configuration from disk.
// If path is empty the default path is used. A missing file yields the
// default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		path = DaemonConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	cfg := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveDaemonConfig saves the daemon configuration to disk.
func SaveDaemonConfig(path string, cfg *DaemonConfig) error {
	if path == "" {
		path = DaemonConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Queue.PendingWindow <= 0 {
		return fmt.Errorf("%w: queue.pending_window must be positive", ErrInvalidSetting)
	}
	if c.Queue.RecentWindow <= 0 {
		return fmt.Errorf("%w: queue.recent_window must be positive", ErrInvalidSetting)
	}

	if c.Display.MaxVisible < 1 || c.Display.MaxVisible > 20 {
		return fmt.Errorf("%w: max_visible must be between 1 and 20, got %d", ErrInvalidSetting, c.Display.MaxVisible)
	}
	if c.Display.ItemHeight < 1 {
		return fmt.Errorf("%w: item_height must be at least 1, got %d", ErrInvalidSetting, c.Display.ItemHeight)
	}
	if c.Display.Gap < 0 || c.Display.OffsetY < 0 {
		return fmt.Errorf("%w: gap and offset_y must not be negative", ErrInvalidSetting)
	}

	for name, d := range map[string]Duration{
		"low":    c.Timeouts.Low,
		"normal": c.Timeouts.Normal,
		"high":   c.Timeouts.High,
	} {
		if d < 0 {
			return fmt.Errorf("%w: timeouts.%s must not be negative", ErrInvalidSetting, name)
		}
	}

	if c.Navigation.RetryDelay <= 0 {
		return fmt.Errorf("%w: navigation.retry_delay must be positive", ErrInvalidSetting)
	}
	if c.Navigation.MaxAttempts < 1 || c.Navigation.MaxAttempts > 100 {
		return fmt.Errorf("%w: max_attempts must be between 1 and 100, got %d", ErrInvalidSetting, c.Navigation.MaxAttempts)
	}

	if c.Internal.MinInterval < 0 {
		return fmt.Errorf("%w: internal.min_interval must not be negative", ErrInvalidSetting)
	}

	return nil
}

// GetTimeoutForPriority returns the auto-hide timeout for the given priority.
// Zero means the notification never expires.
func (c *DaemonConfig) GetTimeoutForPriority(p model.Priority) time.Duration {
	switch p {
	case model.PriorityLow:
		return c.Timeouts.Low.Duration()
	case model.PriorityHigh:
		return c.Timeouts.High.Duration()
	default:
		return c.Timeouts.Normal.Duration()
	}
}
