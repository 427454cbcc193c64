package daemon

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/dbus"
	"github.com/jmylchreest/notiq/internal/display"
)

// DisplayStatus is the lifecycle position of a bus-delivered notification.
type DisplayStatus int

const (
	// DisplayStatusQueued means the manager accepted the notification.
	DisplayStatusQueued DisplayStatus = iota
	// DisplayStatusDisplayed means the notification appeared in a frame.
	DisplayStatusDisplayed
	// DisplayStatusExpired means the auto-hide timer removed it.
	DisplayStatusExpired
	// DisplayStatusDismissed means the user dismissed it.
	DisplayStatusDismissed
	// DisplayStatusOpened means the user opened it.
	DisplayStatusOpened
	// DisplayStatusClosed means the sender closed it via CloseNotification.
	DisplayStatusClosed
)

// String returns the string representation of DisplayStatus.
func (s DisplayStatus) String() string {
	switch s {
	case DisplayStatusQueued:
		return "queued"
	case DisplayStatusDisplayed:
		return "displayed"
	case DisplayStatusExpired:
		return "expired"
	case DisplayStatusDismissed:
		return "dismissed"
	case DisplayStatusOpened:
		return "opened"
	case DisplayStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// statusFor maps a presenter close reason to a display status.
func statusFor(reason display.CloseReason) DisplayStatus {
	switch reason {
	case display.CloseReasonExpired:
		return DisplayStatusExpired
	case display.CloseReasonOpened:
		return DisplayStatusOpened
	default:
		return DisplayStatusDismissed
	}
}

// busCloseReason maps a presenter close reason to the NotificationClosed reason.
func busCloseReason(reason display.CloseReason) dbus.CloseReason {
	if reason == display.CloseReasonExpired {
		return dbus.CloseReasonExpired
	}
	return dbus.CloseReasonDismissed
}

// DisplayState links a queued notification to the bus id its sender knows.
type DisplayState struct {
	NotificationID string
	BusID          uint32
	Status         DisplayStatus
	CreatedAt      time.Time
	ClosedAt       time.Time
}

// DisplayTracker keeps the bus id <-> notification id mapping.
type DisplayTracker struct {
	clock clockwork.Clock

	mu    sync.RWMutex
	byID  map[string]*DisplayState
	byBus map[uint32]string
}

// NewDisplayTracker creates an empty tracker.
func NewDisplayTracker(clock clockwork.Clock) *DisplayTracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DisplayTracker{
		clock: clock,
		byID:  make(map[string]*DisplayState),
		byBus: make(map[uint32]string),
	}
}

// Register maps a notification id to a bus id. A bus id that was reused via
// replaces_id drops its previous notification mapping.
func (t *DisplayTracker) Register(notificationID string, busID uint32) DisplayState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.byBus[busID]; ok {
		delete(t.byID, old)
	}
	if old, ok := t.byID[notificationID]; ok {
		delete(t.byBus, old.BusID)
	}

	state := &DisplayState{
		NotificationID: notificationID,
		BusID:          busID,
		Status:         DisplayStatusQueued,
		CreatedAt:      t.clock.Now(),
	}
	t.byID[notificationID] = state
	t.byBus[busID] = notificationID
	return *state
}

// ByNotificationID looks up a state by notification id.
func (t *DisplayTracker) ByNotificationID(id string) (DisplayState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.byID[id]
	if !ok {
		return DisplayState{}, false
	}
	return *state, true
}

// ByBusID looks up a state by bus id.
func (t *DisplayTracker) ByBusID(busID uint32) (DisplayState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byBus[busID]
	if !ok {
		return DisplayState{}, false
	}
	return *t.byID[id], true
}

// Finish stamps a final status on a notification and stops tracking it.
// It returns the final state.
func (t *DisplayTracker) Finish(notificationID string, status DisplayStatus) (DisplayState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.byID[notificationID]
	if !ok {
		return DisplayState{}, false
	}
	delete(t.byBus, state.BusID)
	delete(t.byID, notificationID)

	state.Status = status
	state.ClosedAt = t.clock.Now()
	return *state, true
}

// MarkDisplayed moves queued notifications to displayed.
func (t *DisplayTracker) MarkDisplayed(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if state, ok := t.byID[id]; ok && state.Status == DisplayStatusQueued {
			state.Status = DisplayStatusDisplayed
		}
	}
}

// Count returns the number of tracked notifications.
func (t *DisplayTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// CountByStatus returns how many tracked notifications have status.
func (t *DisplayTracker) CountByStatus(status DisplayStatus) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, state := range t.byID {
		if state.Status == status {
			count++
		}
	}
	return count
}
