package dbus

import (
	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/notiq/internal/model"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the notification protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Hint keys carrying the notification payload.
const (
	HintType      = "x-notiq-type"
	HintProjectID = "x-notiq-project-id"
	HintTaskID    = "x-notiq-task-id"
	HintIssueID   = "x-notiq-issue-id"
	HintSource    = "x-notiq-source"
	HintPriority  = "x-notiq-priority"
	HintUrgency   = "urgency"
)

// Freedesktop urgency levels.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// payloadHints maps hint keys to payload keys.
var payloadHints = map[string]string{
	HintType:      model.KeyType,
	HintProjectID: model.KeyProjectID,
	HintTaskID:    model.KeyTaskID,
	HintIssueID:   model.KeyIssueID,
	HintSource:    model.KeySource,
	HintPriority:  model.KeyPriority,
}

// DBusNotification represents an incoming D-Bus Notify call.
// It contains the raw parameters from the org.freedesktop.Notifications.Notify method.
type DBusNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Action represents a notification action with key and label.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ParsedActions converts the D-Bus action array to structured form.
// D-Bus actions are passed as alternating key/label pairs.
func (n *DBusNotification) ParsedActions() []Action {
	actions := make([]Action, 0, len(n.Actions)/2)
	for i := 0; i+1 < len(n.Actions); i += 2 {
		actions = append(actions, Action{
			Key:   n.Actions[i],
			Label: n.Actions[i+1],
		})
	}
	return actions
}

// Urgency extracts the urgency hint from the notification.
// Returns UrgencyNormal if not specified.
func (n *DBusNotification) Urgency() byte {
	if v, ok := n.Hints[HintUrgency]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return UrgencyNormal
}

// stringHint returns a string hint or "".
func (n *DBusNotification) stringHint(key string) string {
	if v, ok := n.Hints[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// Priority derives the payload priority. An explicit x-notiq-priority hint
// wins over the freedesktop urgency.
func (n *DBusNotification) Priority() model.Priority {
	if p := n.stringHint(HintPriority); p != "" {
		return model.ParsePriority(p)
	}
	switch n.Urgency() {
	case UrgencyLow:
		return model.PriorityLow
	case UrgencyCritical:
		return model.PriorityHigh
	default:
		return model.PriorityNormal
	}
}

// Data builds the notification payload from the hints. The source falls
// back to the application name.
func (n *DBusNotification) Data() model.Data {
	fields := make(map[string]string, len(payloadHints))
	for hint, key := range payloadHints {
		if s := n.stringHint(hint); s != "" {
			fields[key] = s
		}
	}

	data := model.ParseData(fields)
	data.Priority = n.Priority()
	if data.Source == "" {
		data.Source = n.AppName
	}
	return data
}

// ToNotification converts the call into a queue notification.
// Id and timestamp are left for the queue manager to assign.
func (n *DBusNotification) ToNotification() model.Notification {
	return model.Notification{
		Title:   n.Summary,
		Message: n.Body,
		Data:    n.Data(),
	}
}

// HintsFor encodes a payload as Notify hints.
func HintsFor(data model.Data) map[string]dbus.Variant {
	hints := make(map[string]dbus.Variant)
	fields := data.Fields()
	for hint, key := range payloadHints {
		if v, ok := fields[key]; ok {
			hints[hint] = dbus.MakeVariant(v)
		}
	}

	urgency := UrgencyNormal
	switch data.Priority {
	case model.PriorityLow:
		urgency = UrgencyLow
	case model.PriorityHigh:
		urgency = UrgencyCritical
	}
	hints[HintUrgency] = dbus.MakeVariant(urgency)
	return hints
}

// ServerCapabilities lists the capabilities advertised by notiqd.
var ServerCapabilities = []string{
	"actions",     // Support notification actions
	"body",        // Support body text
	"persistence", // Persist notifications to history
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string // "notiqd"
	Vendor      string // "notiq"
	Version     string // Build version
	SpecVersion string // "1.2"
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "notiqd",
		Vendor:      "notiq",
		Version:     "0.0.1", // Will be replaced by build-time version
		SpecVersion: "1.2",
	}
}
