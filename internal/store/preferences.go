package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CurrentPreferencesVersion is the current version of the preferences schema.
const CurrentPreferencesVersion = 1

// Preferences holds user settings shared between notiq and notiqd.
// This is persisted to ~/.local/share/notiq/preferences.json
type Preferences struct {
	// PopupsEnabled is nil until the user makes a choice; nil means enabled.
	PopupsEnabled *bool `json:"popups_enabled,omitempty"`

	UpdatedAt int64  `json:"updated_at,omitempty"` // Unix timestamp of the last change
	UpdatedBy string `json:"updated_by,omitempty"` // Source of the last change (e.g. "cli", "tui")

	SchemaVersion int `json:"schema_version"`
}

// prefsFileMutex serialises access to preference files within the process.
var prefsFileMutex sync.RWMutex

// DefaultPreferences returns preferences with no choice recorded.
func DefaultPreferences() *Preferences {
	return &Preferences{SchemaVersion: CurrentPreferencesVersion}
}

// PopupsOn reports whether popups should be shown.
func (p *Preferences) PopupsOn() bool {
	return p.PopupsEnabled == nil || *p.PopupsEnabled
}

// SetPopups records an explicit popup choice.
func (p *Preferences) SetPopups(enabled bool, source string) {
	p.PopupsEnabled = &enabled
	p.UpdatedAt = time.Now().Unix()
	p.UpdatedBy = source
}

// TogglePopups flips the popup choice and returns the new state.
func (p *Preferences) TogglePopups(source string) bool {
	p.SetPopups(!p.PopupsOn(), source)
	return p.PopupsOn()
}

// LoadPreferences loads preferences from path.
// A missing or corrupted file yields the defaults.
func LoadPreferences(path string) (*Preferences, error) {
	prefsFileMutex.RLock()
	defer prefsFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPreferences(), nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences(), nil
	}
	if prefs.SchemaVersion == 0 {
		prefs.SchemaVersion = CurrentPreferencesVersion
	}
	return &prefs, nil
}

// SavePreferences writes preferences to path atomically.
func SavePreferences(path string, prefs *Preferences) error {
	prefsFileMutex.Lock()
	defer prefsFileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if prefs.SchemaVersion == 0 {
		prefs.SchemaVersion = CurrentPreferencesVersion
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// PreferenceSource provides the current preferences to readers that must not
// touch the filesystem on every call.
type PreferenceSource struct {
	path string

	mu    sync.RWMutex
	prefs *Preferences
}

// NewPreferenceSource loads path and caches the result.
func NewPreferenceSource(path string) (*PreferenceSource, error) {
	prefs, err := LoadPreferences(path)
	if err != nil {
		return nil, err
	}
	return &PreferenceSource{path: path, prefs: prefs}, nil
}

// Path returns the preferences file.
func (s *PreferenceSource) Path() string {
	return s.path
}

// PopupsOn reports the cached popup preference.
func (s *PreferenceSource) PopupsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.PopupsOn()
}

// Reload re-reads the file. On error the cached preferences are kept.
func (s *PreferenceSource) Reload() error {
	prefs, err := LoadPreferences(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return nil
}

// SetPopups persists a popup choice and updates the cache.
func (s *PreferenceSource) SetPopups(enabled bool, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.prefs
	next.SetPopups(enabled, source)
	if err := SavePreferences(s.path, &next); err != nil {
		return err
	}
	s.prefs = &next
	return nil
}
