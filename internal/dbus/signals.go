package dbus

import "fmt"

// emit sends a signal on the notification interface. It fails with
// ErrNotConnected until Start has succeeded.
func (s *NotificationServer) emit(member string, values ...interface{}) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Emit(DBusPath, DBusInterface+"."+member, values...); err != nil {
		return fmt.Errorf("emitting %s: %w", member, err)
	}
	return nil
}

// EmitNotificationClosed tells the sender why its notification went away.
func (s *NotificationServer) EmitNotificationClosed(id uint32, reason CloseReason) error {
	if err := s.emit("NotificationClosed", id, uint32(reason)); err != nil {
		return err
	}
	s.logger.Debug("closed signal sent", "bus_id", id, "reason", reason.String())
	return nil
}

func (s *NotificationServer) EmitActionInvoked(id uint32, actionKey string) error {
	if err := s.emit("ActionInvoked", id, actionKey); err != nil {
		return err
	}
	s.logger.Debug("action signal sent", "bus_id", id, "action", actionKey)
	return nil
}

// CloseWithReason releases the id and emits NotificationClosed.
func (s *NotificationServer) CloseWithReason(id uint32, reason CloseReason) error {
	s.MarkClosed(id)
	return s.EmitNotificationClosed(id, reason)
}

// InvokeAction emits ActionInvoked. Non-resident notifications are closed
// afterwards even when the signal could not be sent.
func (s *NotificationServer) InvokeAction(id uint32, actionKey string, resident bool) error {
	err := s.EmitActionInvoked(id, actionKey)
	if resident {
		return err
	}
	if closeErr := s.CloseWithReason(id, CloseReasonDismissed); err == nil {
		err = closeErr
	}
	return err
}
