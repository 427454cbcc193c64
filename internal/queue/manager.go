package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/model"
)

// ErrClosed is returned by operations on a closed manager.
var ErrClosed = errors.New("queue manager closed")

// Listener receives a copy of the full queue after each change.
// The slice is owned by the listener.
type Listener func(snapshot []model.Notification)

// ListenerID identifies a registered listener.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

type pendingKey struct {
	expires time.Time
	timer   clockwork.Timer
}

// Stats counts what the manager has done since it was created.
type Stats struct {
	Accepted          int
	SuppressedPending int
	SuppressedRecent  int
	Removed           int
	Cleared           int
	ListenerPanics    int
}

// Manager owns the notification queue, the dedup guards and the listener set.
// It is safe for concurrent use.
type Manager struct {
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger

	mu         sync.Mutex
	queue      []model.Notification
	listeners  []listenerEntry
	nextID     ListenerID
	pending    map[string]pendingKey
	stats      Stats
	closed     bool
	dispatcher *dispatcher

	fallbackSeq atomic.Uint64
}

// NewManager creates a manager with an empty queue and starts its dispatch loop.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg.withDefaults(),
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		pending: make(map[string]pendingKey),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dispatcher = newDispatcher()
	return m
}

// Config returns the dedup windows in effect.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// SetConfig replaces the dedup windows. Pending keys already registered keep
// their original expiry.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.withDefaults()
}

// ShowNotification submits a notification. Duplicates are dropped silently;
// accepted notifications are appended and broadcast asynchronously.
// A missing ID or Timestamp is filled in from the manager's clock.
func (m *Manager) ShowNotification(n model.Notification) {
	now := m.clock.Now()
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	if n.ID == "" {
		n.ID = m.generateID(now)
	}
	key := n.DedupeKey()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Debug("notification dropped, manager closed", "id", n.ID)
		return
	}

	if p, ok := m.pending[key]; ok && now.Before(p.expires) {
		m.stats.SuppressedPending++
		m.logger.Debug("notification suppressed",
			"reason", "pending",
			"dedup_key", key,
			"id", n.ID,
		)
		return
	}
	m.markPendingLocked(key, now)

	if existing, ok := m.findRecentLocked(n, key, now); ok {
		m.stats.SuppressedRecent++
		m.logger.Debug("notification suppressed",
			"reason", "recent",
			"dedup_key", key,
			"id", n.ID,
			"existing_id", existing.ID,
		)
		return
	}

	m.queue = append(m.queue, n)
	m.stats.Accepted++
	m.logger.Debug("notification queued",
		"id", n.ID,
		"title", n.Title,
		"kind", n.Data.Kind(),
		"queue_len", len(m.queue),
	)
	m.broadcastLocked()
}

// RemoveNotification removes the entry with the given id. Unknown ids are a
// no-op and do not trigger a broadcast.
func (m *Manager) RemoveNotification(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.queue {
		if m.queue[i].ID != id {
			continue
		}
		m.queue = append(m.queue[:i:i], m.queue[i+1:]...)
		m.stats.Removed++
		m.logger.Debug("notification removed", "id", id, "queue_len", len(m.queue))
		m.broadcastLocked()
		return
	}
	m.logger.Debug("remove ignored, id not queued", "id", id)
}

// ClearAll empties the queue and always broadcasts.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := len(m.queue)
	m.queue = nil
	m.stats.Cleared += cleared
	m.logger.Debug("queue cleared", "count", cleared)
	m.broadcastLocked()
}

// AddListener registers a listener. When the queue is non-empty the new
// listener is sent a one-time snapshot of the current state. The returned id
// is passed to RemoveListener.
func (m *Manager) AddListener(l Listener) ListenerID {
	if l == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: l})

	if len(m.queue) > 0 {
		snapshot := m.snapshotLocked()
		m.post(func() { m.deliverTo(id, snapshot) })
	}
	return id
}

// RemoveListener unregisters a listener. Unknown ids are a no-op.
func (m *Manager) RemoveListener(id ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.listeners {
		if m.listeners[i].id == id {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current queue.
func (m *Manager) Snapshot() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Len returns the number of queued notifications.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Get returns the queued notification with the given id.
func (m *Manager) Get(id string) (model.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.queue {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// Stats returns a copy of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Flush blocks until every broadcast posted before the call has been delivered.
func (m *Manager) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !m.dispatcher.post(func() { close(done) }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops pending-key timers, delivers outstanding broadcasts and stops
// the dispatch loop. It must not be called from a listener.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for key, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, key)
	}
	m.mu.Unlock()

	m.dispatcher.close()
}

func (m *Manager) generateID(now time.Time) string {
	id, err := model.NewID(now)
	if err == nil {
		return id
	}
	m.logger.Warn("failed to generate notification id", "error", err)
	return fmt.Sprintf("%d-%d", now.UnixNano(), m.fallbackSeq.Add(1))
}

// markPendingLocked registers key for the pending window, replacing any
// earlier registration and its cleanup timer.
func (m *Manager) markPendingLocked(key string, now time.Time) {
	if p, ok := m.pending[key]; ok {
		p.timer.Stop()
	}
	expires := now.Add(m.cfg.PendingWindow)
	timer := m.clock.AfterFunc(m.cfg.PendingWindow, func() {
		m.expirePending(key, expires)
	})
	m.pending[key] = pendingKey{expires: expires, timer: timer}
}

func (m *Manager) expirePending(key string, expires time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[key]; ok && p.expires.Equal(expires) {
		delete(m.pending, key)
	}
}

// findRecentLocked reports a queued entry that makes n a duplicate: either the
// same id, or the same dedup key created within the recent window.
func (m *Manager) findRecentLocked(n model.Notification, key string, now time.Time) (model.Notification, bool) {
	for _, existing := range m.queue {
		if existing.ID == n.ID {
			return existing, true
		}
		if existing.DedupeKey() == key && now.Sub(existing.Timestamp) < m.cfg.RecentWindow {
			return existing, true
		}
	}
	return model.Notification{}, false
}

func (m *Manager) snapshotLocked() []model.Notification {
	snapshot := make([]model.Notification, len(m.queue))
	copy(snapshot, m.queue)
	return snapshot
}

// broadcastLocked posts the current state to the dispatch loop. Posting under
// the lock keeps broadcasts in mutation order.
func (m *Manager) broadcastLocked() {
	snapshot := m.snapshotLocked()
	m.post(func() { m.deliver(snapshot) })
}

func (m *Manager) post(task func()) {
	if !m.dispatcher.post(task) {
		m.logger.Debug("broadcast dropped, dispatcher closed")
	}
}

func (m *Manager) currentListeners() []listenerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	return listeners
}

func (m *Manager) deliver(snapshot []model.Notification) {
	for _, l := range m.currentListeners() {
		m.invoke(l, cloneSnapshot(snapshot))
	}
}

func (m *Manager) deliverTo(id ListenerID, snapshot []model.Notification) {
	for _, l := range m.currentListeners() {
		if l.id == id {
			m.invoke(l, snapshot)
			return
		}
	}
}

// invoke calls a listener, recovering from panics so one faulty listener
// cannot stop delivery to the others.
func (m *Manager) invoke(l listenerEntry, snapshot []model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.stats.ListenerPanics++
			m.mu.Unlock()
			m.logger.Error("listener panicked",
				"listener_id", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(snapshot)
}

func cloneSnapshot(s []model.Notification) []model.Notification {
	out := make([]model.Notification, len(s))
	copy(out, s)
	return out
}
