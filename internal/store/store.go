// Package store provides notification history and persisted user preferences.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/notiq/internal/model"
)

// FilterOptions specifies criteria for filtering history.
type FilterOptions struct {
	Since time.Duration // Only notifications newer than now-since (0=all)
	Kind  model.Kind    // Exact match on payload kind ("" = any)
	Limit int           // Maximum results (0=unlimited)
	Order string        // "asc" or "desc" by timestamp (default: "desc")
}

// Store keeps every accepted notification, indexed by id, and mirrors it to
// persistence.
type Store struct {
	mu            sync.RWMutex
	notifications []model.Notification
	index         map[string]int // id -> slice index

	persistence Persistence
	closed      bool
}

// NewStore creates a new Store.
// If persistence is not nil, it will be used to persist notifications.
func NewStore(persistence Persistence) *Store {
	return &Store{
		index:       make(map[string]int),
		persistence: persistence,
	}
}

// Add adds a notification. Ids already stored are skipped.
func (s *Store) Add(n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	_, err := s.addLocked(n)
	return err
}

// Record adds every notification of a queue snapshot that is not yet stored
// and returns how many were new.
func (s *Store) Record(snapshot []model.Notification) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	added := 0
	for _, n := range snapshot {
		ok, err := s.addLocked(n)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (s *Store) addLocked(n model.Notification) (bool, error) {
	if n.ID == "" {
		return false, model.ErrEmptyID
	}
	if _, exists := s.index[n.ID]; exists {
		return false, nil
	}

	s.index[n.ID] = len(s.notifications)
	s.notifications = append(s.notifications, n)

	if s.persistence != nil {
		if err := s.persistence.Append(n); err != nil {
			return true, err
		}
	}
	return true, nil
}

// GetByID returns the notification with the given id, or nil.
func (s *Store) GetByID(id string) *model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, ok := s.index[id]; ok {
		return s.notifications[idx].Clone()
	}
	return nil
}

// Count returns the number of stored notifications.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}

// Filter returns notifications matching the criteria.
func (s *Store) Filter(opts FilterOptions) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterNotifications(s.notifications, opts, time.Now())
}

// filterNotifications applies opts to ns relative to now.
func filterNotifications(ns []model.Notification, opts FilterOptions, now time.Time) []model.Notification {
	var result []model.Notification
	for _, n := range ns {
		if opts.Since > 0 && n.Timestamp.Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.Kind != "" && n.Data.Kind() != opts.Kind {
			continue
		}
		result = append(result, n)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if opts.Order == "asc" {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// FilterHistory loads a history file and applies opts to it.
func FilterHistory(path string, opts FilterOptions) ([]model.Notification, error) {
	ns, err := ReadHistory(path)
	if err != nil {
		return nil, err
	}
	return filterNotifications(ns, opts, time.Now()), nil
}

// Prune removes notifications older than olderThan and, when keep > 0, all
// but the newest keep entries. Returns the number removed.
func (s *Store) Prune(olderThan time.Duration, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	kept := make([]model.Notification, 0, len(s.notifications))
	cutoff := time.Now().Add(-olderThan)
	for _, n := range s.notifications {
		if olderThan > 0 && n.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, n)
	}

	if keep > 0 && len(kept) > keep {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Timestamp.Before(kept[j].Timestamp)
		})
		kept = kept[len(kept)-keep:]
	}

	removed := len(s.notifications) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := s.replaceLocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear removes all notifications from the store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.replaceLocked(nil)
}

func (s *Store) replaceLocked(ns []model.Notification) error {
	if s.persistence != nil {
		if err := s.persistence.Rewrite(ns); err != nil {
			return err
		}
	}

	s.notifications = ns
	s.index = make(map[string]int, len(ns))
	for i, n := range ns {
		s.index[n.ID] = i
	}
	return nil
}

// Hydrate loads notifications from persistence into the store.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	notifications, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		if _, exists := s.index[n.ID]; exists {
			continue
		}
		s.index[n.ID] = len(s.notifications)
		s.notifications = append(s.notifications, n)
	}
	return nil
}

// Close releases the persistence.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
