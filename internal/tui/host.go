package tui

import (
	"errors"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/notiq/internal/display"
)

// ErrNotReady is returned by Navigate before the terminal has been sized.
var ErrNotReady = errors.New("terminal not ready")

// Host bridges the daemon to a running program. It is the presenter's sink
// and the router's navigator.
type Host struct {
	ready atomic.Bool

	mu   sync.Mutex
	send func(tea.Msg)
	seq  uint64
	last frameMsg
}

// NewHost creates a host with no program attached.
func NewHost() *Host {
	return &Host{}
}

// Attach connects a program. Frames rendered earlier are picked up by the
// model's Init.
func (h *Host) Attach(p *tea.Program) {
	h.setSender(p.Send)
}

func (h *Host) setSender(send func(tea.Msg)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send = send
}

// Render implements display.Sink.
func (h *Host) Render(frame display.Frame) {
	h.mu.Lock()
	h.seq++
	msg := frameMsg{seq: h.seq, frame: frame}
	h.last = msg
	send := h.send
	h.mu.Unlock()

	if send != nil {
		send(msg)
	}
}

// latest returns the most recent frame message, or nil before the first frame.
func (h *Host) latest() tea.Msg {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seq == 0 {
		return nil
	}
	return h.last
}

// Ready implements navigation.Navigator. It turns true once the program has
// received its first window size.
func (h *Host) Ready() bool {
	return h.ready.Load()
}

// Navigate implements navigation.Navigator.
func (h *Host) Navigate(screen string, params map[string]string) error {
	if !h.Ready() {
		return ErrNotReady
	}
	h.mu.Lock()
	send := h.send
	h.mu.Unlock()
	if send == nil {
		return ErrNotReady
	}

	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	send(navigateMsg{screen: screen, params: copied})
	return nil
}

func (h *Host) markReady() {
	h.ready.Store(true)
}

// frameMsg carries a frame; seq orders frames delivered by Init and Render.
type frameMsg struct {
	seq   uint64
	frame display.Frame
}

type navigateMsg struct {
	screen string
	params map[string]string
}
