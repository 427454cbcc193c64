package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// DBusInterface is the freedesktop notification interface.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is where notiqd exports the interface.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the well-known name notiqd owns while serving.
	DBusBusName = "org.freedesktop.Notifications"
)

var (
	ErrAlreadyRunning = errors.New("notification server already running")
	ErrNameTaken      = errors.New("notification bus name owned by another daemon")
	ErrNotConnected   = errors.New("notification server has no bus connection")
)

// NotificationHandler receives each accepted Notify call with the bus id
// returned to the sender.
type NotificationHandler func(notification *DBusNotification, id uint32)

// CloseHandler receives the bus id of a sender's CloseNotification call.
type CloseHandler func(id uint32)

// NotificationServer answers org.freedesktop.Notifications calls and keeps
// the set of bus ids that senders may still replace or close.
type NotificationServer struct {
	conn   *dbus.Conn
	logger *slog.Logger

	nextID   atomic.Uint32
	onNotify NotificationHandler
	onClose  CloseHandler

	mu      sync.RWMutex
	active  map[uint32]bool
	info    ServerInfo
	serving bool
}

// NewNotificationServer returns a server that is not yet on the bus. Notify
// and CloseNotification can be called directly before Start.
func NewNotificationServer(logger *slog.Logger) *NotificationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationServer{
		logger: logger,
		active: make(map[uint32]bool),
		info:   DefaultServerInfo(),
	}
}

func (s *NotificationServer) SetNotifyHandler(handler NotificationHandler) {
	s.onNotify = handler
}

func (s *NotificationServer) SetCloseHandler(handler CloseHandler) {
	s.onClose = handler
}

// SetServerInfo replaces what GetServerInformation reports.
func (s *NotificationServer) SetServerInfo(info ServerInfo) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

// Start exports the interface on the session bus and takes the well-known
// name. Another owner of the name yields ErrNameTaken.
func (s *NotificationServer) Start() error {
	s.mu.RLock()
	serving := s.serving
	s.mu.RUnlock()
	if serving {
		return ErrAlreadyRunning
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connecting to session bus: %w", err)
	}
	if err := export(conn, s); err != nil {
		return err
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue|dbus.NameFlagReplaceExisting)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", DBusBusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%w: %s", ErrNameTaken, DBusBusName)
	}

	s.mu.Lock()
	s.conn = conn
	s.serving = true
	s.mu.Unlock()

	s.logger.Info("serving notifications", "name", DBusBusName, "path", DBusPath)
	return nil
}

// export publishes the server object and its introspection data at DBusPath.
func export(conn *dbus.Conn, s *NotificationServer) error {
	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("exporting %s: %w", DBusInterface, err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: DBusInterface, Methods: methods(), Signals: signals()},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("exporting introspection: %w", err)
	}
	return nil
}

// Stop gives up the bus name. The session connection is shared with the
// rest of the process and stays open.
func (s *NotificationServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.serving {
		return nil
	}
	s.serving = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
			s.logger.Warn("bus name not released", "name", DBusBusName, "error", err)
		}
	}
	s.logger.Info("stopped serving notifications")
	return nil
}

// GetCapabilities implements GetCapabilities() -> as.
func (s *NotificationServer) GetCapabilities() ([]string, *dbus.Error) {
	return ServerCapabilities, nil
}

// GetServerInformation implements GetServerInformation() -> (ssss).
func (s *NotificationServer) GetServerInformation() (string, string, string, string, *dbus.Error) {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()
	return info.Name, info.Vendor, info.Version, info.SpecVersion, nil
}

// Notify implements Notify(susssasa{sv}i) -> u.
func (s *NotificationServer) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	return s.accept(&DBusNotification{
		AppName:       appName,
		ReplacesID:    replacesID,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Actions:       actions,
		Hints:         hints,
		ExpireTimeout: expireTimeout,
	}), nil
}

// accept picks the bus id for a call. A replaces_id is reused only while it
// is active; anything else gets a fresh id.
func (s *NotificationServer) accept(n *DBusNotification) uint32 {
	s.mu.Lock()
	id := n.ReplacesID
	if id == 0 || !s.active[id] {
		id = s.nextID.Add(1)
	}
	s.active[id] = true
	s.mu.Unlock()

	s.logger.Debug("notify", "app", n.AppName, "summary", n.Summary, "bus_id", id, "replaces", n.ReplacesID)

	if s.onNotify != nil {
		s.onNotify(n, id)
	}
	return id
}

// CloseNotification implements CloseNotification(u). Ids that are not
// active are ignored without error.
func (s *NotificationServer) CloseNotification(id uint32) *dbus.Error {
	s.mu.Lock()
	known := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if !known {
		s.logger.Debug("close for inactive id", "bus_id", id)
		return nil
	}
	if s.onClose != nil {
		s.onClose(id)
	}
	if err := s.EmitNotificationClosed(id, CloseReasonClosed); err != nil && !errors.Is(err, ErrNotConnected) {
		s.logger.Warn("NotificationClosed not sent", "bus_id", id, "error", err)
	}
	return nil
}

// MarkClosed releases a bus id without emitting anything.
func (s *NotificationServer) MarkClosed(id uint32) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *NotificationServer) IsActive(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[id]
}

func (s *NotificationServer) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// args expands "name:type" pairs into introspection arguments.
func args(direction string, pairs ...string) []introspect.Arg {
	out := make([]introspect.Arg, 0, len(pairs))
	for _, p := range pairs {
		name, typ, _ := strings.Cut(p, ":")
		out = append(out, introspect.Arg{Name: name, Type: typ, Direction: direction})
	}
	return out
}

func methods() []introspect.Method {
	notify := args("in", "app_name:s", "replaces_id:u", "app_icon:s", "summary:s",
		"body:s", "actions:as", "hints:a{sv}", "expire_timeout:i")
	return []introspect.Method{
		{Name: "GetCapabilities", Args: args("out", "capabilities:as")},
		{Name: "GetServerInformation", Args: args("out", "name:s", "vendor:s", "version:s", "spec_version:s")},
		{Name: "Notify", Args: append(notify, args("out", "id:u")...)},
		{Name: "CloseNotification", Args: args("in", "id:u")},
	}
}

func signals() []introspect.Signal {
	return []introspect.Signal{
		{Name: "NotificationClosed", Args: args("", "id:u", "reason:u")},
		{Name: "ActionInvoked", Args: args("", "id:u", "action_key:s")},
	}
}
