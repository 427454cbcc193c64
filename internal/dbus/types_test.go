package dbus

import (
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notiq/internal/model"
)

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		reason   CloseReason
		expected string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestParsedActions(t *testing.T) {
	n := &DBusNotification{Actions: []string{"default", "Open", "dismiss", "Dismiss", "orphan"}}
	assert.Equal(t, []Action{
		{Key: "default", Label: "Open"},
		{Key: "dismiss", Label: "Dismiss"},
	}, n.ParsedActions())

	assert.Empty(t, (&DBusNotification{}).ParsedActions())
}

func TestPriority(t *testing.T) {
	tests := []struct {
		name     string
		hints    map[string]dbus.Variant
		expected model.Priority
	}{
		{"no hints", nil, model.PriorityNormal},
		{"low urgency", map[string]dbus.Variant{HintUrgency: dbus.MakeVariant(UrgencyLow)}, model.PriorityLow},
		{"critical urgency", map[string]dbus.Variant{HintUrgency: dbus.MakeVariant(UrgencyCritical)}, model.PriorityHigh},
		{"wrong urgency type", map[string]dbus.Variant{HintUrgency: dbus.MakeVariant("high")}, model.PriorityNormal},
		{
			"explicit priority wins",
			map[string]dbus.Variant{
				HintUrgency:  dbus.MakeVariant(UrgencyCritical),
				HintPriority: dbus.MakeVariant("low"),
			},
			model.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &DBusNotification{Hints: tt.hints}
			assert.Equal(t, tt.expected, n.Priority())
		})
	}
}

func TestData(t *testing.T) {
	t.Run("task payload", func(t *testing.T) {
		n := &DBusNotification{
			AppName: "tracker",
			Hints: map[string]dbus.Variant{
				HintType:   dbus.MakeVariant("task"),
				HintTaskID: dbus.MakeVariant("t-9"),
			},
		}
		data := n.Data()
		assert.Equal(t, model.TaskSubject{TaskID: "t-9"}, data.Subject)
		assert.Equal(t, "tracker", data.Source)
		assert.Equal(t, model.PriorityNormal, data.Priority)
	})

	t.Run("explicit source", func(t *testing.T) {
		n := &DBusNotification{
			AppName: "tracker",
			Hints:   map[string]dbus.Variant{HintSource: dbus.MakeVariant("ci")},
		}
		data := n.Data()
		assert.Nil(t, data.Subject)
		assert.Equal(t, "ci", data.Source)
	})

	t.Run("unknown type", func(t *testing.T) {
		n := &DBusNotification{Hints: map[string]dbus.Variant{HintType: dbus.MakeVariant("deploy")}}
		assert.Equal(t, model.UnknownSubject{Type: "deploy"}, n.Data().Subject)
	})

	t.Run("non-string hints ignored", func(t *testing.T) {
		n := &DBusNotification{Hints: map[string]dbus.Variant{HintType: dbus.MakeVariant(int32(3))}}
		assert.Nil(t, n.Data().Subject)
	})
}

func TestHintsFor_RoundTrip(t *testing.T) {
	data := model.Data{
		Subject:  model.IssueSubject{IssueID: "i-1"},
		Priority: model.PriorityHigh,
		Source:   "ci",
	}

	hints := HintsFor(data)
	assert.Equal(t, UrgencyCritical, hints[HintUrgency].Value())
	assert.Equal(t, "i-1", hints[HintIssueID].Value())
	assert.NotContains(t, hints, HintTaskID)

	n := &DBusNotification{AppName: "other", Summary: "Broken", Body: "details", Hints: hints}
	got := n.ToNotification()
	assert.Equal(t, "Broken", got.Title)
	assert.Equal(t, "details", got.Message)
	assert.Equal(t, data, got.Data)
	assert.Empty(t, got.ID)
}

func TestParseNotifyBody(t *testing.T) {
	body := []interface{}{
		"app", uint32(0), "icon", "Summary", "Body",
		[]string{"default", "Open"},
		map[string]dbus.Variant{HintType: dbus.MakeVariant("test")},
		int32(-1),
	}

	n, err := ParseNotifyBody(body)
	require.NoError(t, err)
	assert.Equal(t, "app", n.AppName)
	assert.Equal(t, "Summary", n.Summary)
	assert.Equal(t, int32(-1), n.ExpireTimeout)
	assert.Equal(t, model.TestSubject{}, n.Data().Subject)

	_, err = ParseNotifyBody(body[:3])
	assert.ErrorIs(t, err, ErrMalformedNotify)

	bad := append([]interface{}{}, body...)
	bad[3] = 42
	_, err = ParseNotifyBody(bad)
	assert.ErrorIs(t, err, ErrMalformedNotify)
}

func TestMonitor_HandleNotify(t *testing.T) {
	m := NewMonitor(nil)

	var seen []*DBusNotification
	m.SetNotifyHandler(func(n *DBusNotification) { seen = append(seen, n) })

	m.handleNotify([]interface{}{"app", uint32(0), "", "Deployed", "", nil, nil, int32(0)})
	m.handleNotify([]interface{}{"app"})

	require.Len(t, seen, 1)
	assert.Equal(t, "Deployed", seen[0].Summary)
}

func TestServer_NotifyAndClose(t *testing.T) {
	s := NewNotificationServer(nil)

	var received []*DBusNotification
	s.SetNotifyHandler(func(n *DBusNotification, id uint32) {
		received = append(received, n)
	})
	var closed []uint32
	s.SetCloseHandler(func(id uint32) { closed = append(closed, id) })

	id1, derr := s.Notify("app", 0, "", "one", "", nil, nil, -1)
	require.Nil(t, derr)
	id2, _ := s.Notify("app", 0, "", "two", "", nil, nil, -1)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, received, 2)
	assert.Equal(t, 2, s.ActiveCount())

	replaced, _ := s.Notify("app", id1, "", "one again", "", nil, nil, -1)
	assert.Equal(t, id1, replaced)

	stale, _ := s.Notify("app", 999, "", "stale", "", nil, nil, -1)
	assert.NotEqual(t, uint32(999), stale)

	assert.Nil(t, s.CloseNotification(id2))
	assert.Equal(t, []uint32{id2}, closed)
	assert.False(t, s.IsActive(id2))

	// Closing an unknown id does not reach the handler.
	assert.Nil(t, s.CloseNotification(id2))
	assert.Len(t, closed, 1)
}

func TestServer_SignalsRequireConnection(t *testing.T) {
	s := NewNotificationServer(nil)
	assert.ErrorIs(t, s.EmitNotificationClosed(1, CloseReasonExpired), ErrNotConnected)
	assert.ErrorIs(t, s.EmitActionInvoked(1, "default"), ErrNotConnected)
}

func TestServer_Info(t *testing.T) {
	s := NewNotificationServer(nil)
	name, vendor, _, specVersion, derr := s.GetServerInformation()
	require.Nil(t, derr)
	assert.Equal(t, "notiqd", name)
	assert.Equal(t, "notiq", vendor)
	assert.Equal(t, "1.2", specVersion)

	caps, _ := s.GetCapabilities()
	assert.Contains(t, caps, "persistence")
}

func TestHintsFor_CustomTypeKeepsIDs(t *testing.T) {
	data := model.ParseData(map[string]string{model.KeyType: "comment", model.KeyProjectID: "p2"})

	hints := HintsFor(data)
	assert.Equal(t, "p2", hints[HintProjectID].Value())

	n := &DBusNotification{Hints: hints}
	assert.Equal(t, model.UnknownSubject{Type: "comment", ProjectID: "p2"}, n.Data().Subject)
}

func TestIntrospection_NotifySignature(t *testing.T) {
	var notify []string
	for _, m := range methods() {
		if m.Name != "Notify" {
			continue
		}
		for _, a := range m.Args {
			if a.Direction == "in" {
				notify = append(notify, a.Type)
			}
		}
		assert.Equal(t, introspect.Arg{Name: "id", Type: "u", Direction: "out"}, m.Args[len(m.Args)-1])
	}
	assert.Equal(t, "susssasa{sv}i", strings.Join(notify, ""))
	require.Len(t, signals(), 2)
	assert.Equal(t, "reason", signals()[0].Args[1].Name)
}
