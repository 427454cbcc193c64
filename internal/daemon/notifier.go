package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/model"
)

// InternalSource is the payload source of notifications about notiqd itself.
const InternalSource = "notiqd"

// internalSubject marks daemon notifications; it has no navigation route.
var internalSubject = model.UnknownSubject{Type: "internal"}

// NotificationLevel indicates the severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo maps to low priority.
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning maps to normal priority.
	NotificationLevelWarning
	// NotificationLevelError maps to high priority.
	NotificationLevelError
)

// Priority returns the payload priority for the level.
func (l NotificationLevel) Priority() model.Priority {
	switch l {
	case NotificationLevelInfo:
		return model.PriorityLow
	case NotificationLevelError:
		return model.PriorityHigh
	default:
		return model.PriorityNormal
	}
}

// Submitter accepts notifications; *queue.Manager satisfies it.
type Submitter interface {
	ShowNotification(n model.Notification)
}

// InternalNotifier sends notifications about daemon events through the same
// queue as everything else. Each key is rate limited.
type InternalNotifier struct {
	submit Submitter
	clock  clockwork.Clock
	logger *slog.Logger

	mu          sync.Mutex
	lastNotify  map[string]time.Time
	minInterval time.Duration
	enabled     bool
}

// NewInternalNotifier creates an enabled notifier.
func NewInternalNotifier(submit Submitter, clock clockwork.Clock, logger *slog.Logger) *InternalNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		submit:      submit,
		clock:       clock,
		logger:      logger,
		lastNotify:  make(map[string]time.Time),
		minInterval: 10 * time.Second,
		enabled:     true,
	}
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications of one key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify submits an internal notification unless it is disabled or the key
// was used within the minimum interval. It reports whether it submitted.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) bool {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return false
	}
	now := n.clock.Now()
	if last, ok := n.lastNotify[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key)
		return false
	}
	n.lastNotify[key] = now
	n.mu.Unlock()

	n.logger.Debug("sending internal notification", "key", key, "summary", summary)
	n.submit.ShowNotification(model.Notification{
		Title:   summary,
		Message: body,
		Data: model.Data{
			Subject:  internalSubject,
			Priority: level.Priority(),
			Source:   InternalSource,
		},
	})
	return true
}

// NotifyConfigReloaded reports a successful hot reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify("config-reload", "Configuration Reloaded",
		"notiqd configuration has been reloaded.", NotificationLevelInfo)
}

// NotifyConfigError reports a rejected configuration file.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error",
		"Failed to reload configuration: "+err.Error(), NotificationLevelWarning)
}

// NotifyStartup reports that the daemon is running.
func (n *InternalNotifier) NotifyStartup(version string) {
	n.Notify("startup", "notiqd Started",
		"Notification daemon v"+version+" is now running.", NotificationLevelInfo)
}

// NotifyTransportError reports a push transport failure.
func (n *InternalNotifier) NotifyTransportError(err error) {
	n.Notify("transport-error", "Transport Error", err.Error(), NotificationLevelError)
}
