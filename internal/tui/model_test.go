package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notiq/internal/display"
	"github.com/jmylchreest/notiq/internal/model"
	"github.com/jmylchreest/notiq/internal/navigation"
)

type fakeController struct {
	mu        sync.Mutex
	dismissed []string
	opened    []string
	cleared   int
	popups    bool
}

func (c *fakeController) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dismissed = append(c.dismissed, id)
}

func (c *fakeController) DismissAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
}

func (c *fakeController) Open(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, id)
	return true
}

func (c *fakeController) TogglePopups() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.popups = !c.popups
	return c.popups, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testFrame() display.Frame {
	task := model.Notification{
		ID:        "n1",
		Title:     "Review requested",
		Message:   "PR #12 needs a review",
		Timestamp: testNow.Add(-2 * time.Minute),
		Data:      model.Data{Subject: model.TaskSubject{TaskID: "t-1"}, Priority: model.PriorityHigh, Source: "tracker"},
	}
	internal := model.Notification{
		ID:        "n2",
		Title:     "Configuration Reloaded",
		Timestamp: testNow,
		Data:      model.Data{Subject: model.UnknownSubject{Type: "internal"}},
	}
	return display.Frame{
		Items: []display.Item{
			{Notification: task, Index: 0, OffsetY: 1, ExpiresAt: testNow.Add(10 * time.Second)},
			{Notification: internal, Index: 1, OffsetY: 5},
		},
		Queued: 3,
		Hidden: 1,
	}
}

func newTestModel(t *testing.T) (Model, *Host, *fakeController) {
	t.Helper()
	host := NewHost()
	ctrl := &fakeController{}
	m := New(host, ctrl)
	m.now = func() time.Time { return testNow }
	return m, host, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ReadyAfterWindowSize(t *testing.T) {
	m, host, _ := newTestModel(t)
	assert.False(t, host.Ready())
	assert.Equal(t, "Initializing...", m.View())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.True(t, host.Ready())
	assert.Contains(t, m.View(), "No notifications")
}

func TestHost_NavigateBeforeReady(t *testing.T) {
	host := NewHost()
	var sent []tea.Msg
	host.setSender(func(msg tea.Msg) { sent = append(sent, msg) })

	assert.ErrorIs(t, host.Navigate(navigation.ScreenTaskDetails, nil), ErrNotReady)
	assert.Empty(t, sent)

	host.markReady()
	params := map[string]string{navigation.ParamTaskID: "t-1"}
	require.NoError(t, host.Navigate(navigation.ScreenTaskDetails, params))
	require.Len(t, sent, 1)

	params[navigation.ParamTaskID] = "changed"
	nav, ok := sent[0].(navigateMsg)
	require.True(t, ok)
	assert.Equal(t, "t-1", nav.params[navigation.ParamTaskID])
}

func TestHost_RenderBeforeAttach(t *testing.T) {
	host := NewHost()
	assert.Nil(t, host.latest())

	host.Render(display.Frame{Queued: 1})
	host.Render(display.Frame{Queued: 2})

	msg, ok := host.latest().(frameMsg)
	require.True(t, ok)
	assert.Equal(t, uint64(2), msg.seq)
	assert.Equal(t, 2, msg.frame.Queued)

	var sent []tea.Msg
	host.setSender(func(msg tea.Msg) { sent = append(sent, msg) })
	host.Render(display.Frame{Queued: 3})
	require.Len(t, sent, 1)
}

func TestModel_IgnoresStaleFrames(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, frameMsg{seq: 2, frame: display.Frame{Queued: 2}})
	m, _ = update(t, m, frameMsg{seq: 1, frame: display.Frame{Queued: 1}})
	assert.Equal(t, 2, m.frame.Queued)
}

func TestModel_RendersStack(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, frameMsg{seq: 1, frame: testFrame()})

	view := m.View()
	assert.Contains(t, view, "Review requested")
	assert.Contains(t, view, "PR #12 needs a review")
	assert.Contains(t, view, "2 minutes ago")
	assert.Contains(t, view, "tracker")
	assert.Contains(t, view, "3 queued")
	assert.Contains(t, view, "1 hidden")
}

func TestModel_DismissSelected(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, frameMsg{seq: 1, frame: testFrame()})

	m, _ = update(t, m, keyRunes("j"))
	assert.Equal(t, 1, m.cursor)
	m, _ = update(t, m, keyRunes("j"))
	assert.Equal(t, 1, m.cursor, "cursor stays on the last item")

	_, cmd := update(t, m, keyRunes("d"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, []string{"n2"}, ctrl.dismissed)
	assert.Equal(t, statusMsg{text: "Dismissed Configuration Reloaded"}, msg)
}

func TestModel_DismissAll(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	_, cmd := update(t, m, keyRunes("D"))
	assert.Nil(t, cmd, "nothing to clear")

	m, _ = update(t, m, frameMsg{seq: 1, frame: testFrame()})
	_, cmd = update(t, m, keyRunes("D"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.cleared)
}

func TestModel_OpenRoutable(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, frameMsg{seq: 1, frame: testFrame()})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"n1"}, ctrl.opened)

	m, _ = update(t, m, navigateMsg{
		screen: navigation.ScreenTaskDetails,
		params: map[string]string{navigation.ParamTaskID: "t-1"},
	})
	assert.Equal(t, ModeDetails, m.Mode())
	view := m.View()
	assert.Contains(t, view, "Task")
	assert.Contains(t, view, "t-1")
	assert.Contains(t, view, "Review requested")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeStack, m.Mode())
}

func TestModel_OpenWithoutRoute(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m, _ = update(t, m, frameMsg{seq: 1, frame: testFrame()})
	m, _ = update(t, m, keyRunes("j"))

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(statusMsg)
	require.True(t, ok)
	assert.True(t, msg.isErr)
	assert.Empty(t, ctrl.opened)
}

func TestModel_TogglePopups(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := update(t, m, keyRunes("p"))
	require.NotNil(t, cmd)
	assert.Equal(t, statusMsg{text: "Popups enabled"}, cmd())
	assert.Equal(t, statusMsg{text: "Popups disabled"}, cmd())
}

func TestModel_HelpToggle(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m, _ = update(t, m, keyRunes("?"))
	assert.Equal(t, ModeHelp, m.Mode())
	assert.Contains(t, m.View(), "Keyboard Shortcuts")
	assert.Contains(t, m.View(), "toggle popups")

	m, _ = update(t, m, keyRunes("?"))
	assert.Equal(t, ModeStack, m.Mode())
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := update(t, m, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
