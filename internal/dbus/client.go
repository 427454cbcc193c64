package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/notiq/internal/model"
)

// Client sends notifications to whichever server owns the notification bus name.
type Client struct {
	conn    *dbus.Conn
	appName string
}

// NewClient connects to the session bus.
func NewClient(appName string) (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, appName: appName}, nil
}

// Notify sends n and returns the bus id assigned by the server.
func (c *Client) Notify(ctx context.Context, n model.Notification) (uint32, error) {
	obj := c.conn.Object(DBusBusName, DBusPath)
	call := obj.CallWithContext(ctx, DBusInterface+".Notify", 0,
		c.appName,
		uint32(0),
		"",
		n.Title,
		n.Message,
		[]string{},
		HintsFor(n.Data),
		int32(-1),
	)
	if call.Err != nil {
		return 0, fmt.Errorf("notify: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify reply: %w", err)
	}
	return id, nil
}

// ServerInformation queries the running server.
func (c *Client) ServerInformation(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	obj := c.conn.Object(DBusBusName, DBusPath)
	err := obj.CallWithContext(ctx, DBusInterface+".GetServerInformation", 0).
		Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("get server information: %w", err)
	}
	return info, nil
}

// Close closes the private connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
