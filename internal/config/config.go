// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default CLI configuration values.
const (
	DefaultHistoryLimit  = 20
	DefaultHistoryFormat = "plain"
	DefaultHistorySince  = "48h"
)

// Config errors.
var (
	ErrNoDataDir      = errors.New("unable to determine data directory")
	ErrInvalidFormat  = errors.New("invalid output format")
	ErrInvalidSetting = errors.New("invalid setting")
)

// Config represents the notiq CLI configuration.
// Loaded from ~/.config/notiq/config.toml
type Config struct {
	History HistoryConfig `toml:"history"`
}

// HistoryConfig holds defaults for `notiq history`.
type HistoryConfig struct {
	Limit  int    `toml:"limit"`  // Max entries (0 = unlimited)
	Format string `toml:"format"` // plain, json, yaml
	Since  string `toml:"since"`  // Default time filter (0 = all time)
}

// ValidFormats returns the output formats understood by the CLI.
func ValidFormats() []string {
	return []string{"plain", "json", "yaml"}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		History: HistoryConfig{
			Limit:  DefaultHistoryLimit,
			Format: DefaultHistoryFormat,
			Since:  DefaultHistorySince,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.History.Limit < 0 {
		return fmt.Errorf("%w: history.limit must not be negative, got %d", ErrInvalidSetting, c.History.Limit)
	}
	if _, err := ParseSince(c.History.Since); err != nil {
		return fmt.Errorf("history.since: %w", err)
	}
	format := strings.ToLower(c.History.Format)
	for _, f := range ValidFormats() {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("%w %q, must be one of: %v", ErrInvalidFormat, c.History.Format, ValidFormats())
}

// ParseSince parses a history age filter. Besides Go durations it accepts
// day and week suffixes (7d, 1w). "0" and "" mean all time.
func ParseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}

	for suffix, unit := range map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour} {
		if n, found := strings.CutSuffix(s, suffix); found {
			count, err := strconv.Atoi(n)
			if err != nil || count < 0 {
				return 0, fmt.Errorf("%w: duration %q", ErrInvalidSetting, s)
			}
			return time.Duration(count) * unit, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidSetting, s)
	}
	return d, nil
}

// configHome returns XDG_CONFIG_HOME, falling back to ~/.config.
func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// ConfigPath returns the path to the CLI config file.
func ConfigPath() string {
	return filepath.Join(configHome(), "notiq", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "notiq")
}

// HistoryPath returns the path to the history JSONL file.
func HistoryPath() string {
	return filepath.Join(DataPath(), "history.jsonl")
}

// PreferencesPath returns the path to the persisted user preferences.
func PreferencesPath() string {
	return filepath.Join(DataPath(), "preferences.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return ErrNoDataDir
	}
	return os.MkdirAll(path, 0755)
}
