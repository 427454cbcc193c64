package dbus

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// ErrMalformedNotify is returned for Notify calls whose arguments do not
// match the susssasa{sv}i signature.
var ErrMalformedNotify = errors.New("malformed Notify call")

// Monitor passively observes Notify calls without claiming the bus name.
// This allows running alongside another notification daemon.
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onNotify ObservedHandler
}

// ObservedHandler receives notifications seen by a Monitor. The owning
// server's reply is not visible to a monitor, so no bus id is passed.
type ObservedHandler func(notification *DBusNotification)

// NewMonitor creates a new notification monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger,
	}
}

// SetNotifyHandler sets the callback for received notifications.
func (m *Monitor) SetNotifyHandler(handler ObservedHandler) {
	m.onNotify = handler
}

// Start begins monitoring D-Bus for Notify calls. It uses a private
// connection because a monitoring connection cannot be used for anything else.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	rules := []string{
		"type='method_call',interface='" + DBusInterface + "',member='Notify'",
	}

	err = conn.BusObject().Call("org.freedesktop.DBus.Monitoring.BecomeMonitor", 0, rules, uint32(0)).Err
	if err != nil {
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		matchRule := rules[0] + ",eavesdrop='true'"
		if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
			conn.Close()
			return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
		}
	}

	m.logger.Info("D-Bus monitor started", "interface", DBusInterface)
	go m.processMessages()
	return nil
}

func (m *Monitor) processMessages() {
	ch := make(chan *dbus.Message, 100)
	m.conn.Eavesdrop(ch)

	for msg := range ch {
		if msg.Type != dbus.TypeMethodCall {
			continue
		}
		if iface, _ := msg.Headers[dbus.FieldInterface].Value().(string); iface != DBusInterface {
			continue
		}
		if member, _ := msg.Headers[dbus.FieldMember].Value().(string); member != "Notify" {
			continue
		}
		m.handleNotify(msg.Body)
	}
}

func (m *Monitor) handleNotify(body []interface{}) {
	notification, err := ParseNotifyBody(body)
	if err != nil {
		m.logger.Warn("ignoring Notify call", "error", err)
		return
	}

	m.logger.Debug("captured notification",
		"app_name", notification.AppName,
		"summary", notification.Summary,
	)

	if m.onNotify != nil {
		m.onNotify(notification)
	}
}

// ParseNotifyBody decodes the arguments of a Notify method call.
func ParseNotifyBody(body []interface{}) (*DBusNotification, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: %d arguments", ErrMalformedNotify, len(body))
	}

	n := &DBusNotification{}
	var ok bool
	if n.AppName, ok = body[0].(string); !ok {
		return nil, fmt.Errorf("%w: app_name", ErrMalformedNotify)
	}
	if n.ReplacesID, ok = body[1].(uint32); !ok {
		return nil, fmt.Errorf("%w: replaces_id", ErrMalformedNotify)
	}
	if n.AppIcon, ok = body[2].(string); !ok {
		return nil, fmt.Errorf("%w: app_icon", ErrMalformedNotify)
	}
	if n.Summary, ok = body[3].(string); !ok {
		return nil, fmt.Errorf("%w: summary", ErrMalformedNotify)
	}
	if n.Body, ok = body[4].(string); !ok {
		return nil, fmt.Errorf("%w: body", ErrMalformedNotify)
	}

	// Optional parts are tolerated when their types are off.
	n.Actions, _ = body[5].([]string)
	n.Hints, _ = body[6].(map[string]dbus.Variant)
	n.ExpireTimeout, _ = body[7].(int32)
	return n, nil
}

// Stop stops the monitor.
func (m *Monitor) Stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
