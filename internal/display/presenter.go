package display

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/model"
	"github.com/jmylchreest/notiq/internal/queue"
)

// Queue is the part of the queue manager the presenter drives.
type Queue interface {
	AddListener(l queue.Listener) queue.ListenerID
	RemoveListener(id queue.ListenerID)
	RemoveNotification(id string)
	ClearAll()
}

// PreferenceGate reports whether popups should be rendered.
type PreferenceGate interface {
	PopupsOn() bool
}

// CloseReason indicates why the presenter removed a notification.
type CloseReason int

const (
	CloseReasonExpired CloseReason = iota + 1
	CloseReasonDismissed
	CloseReasonOpened
)

// String returns a human-readable close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonOpened:
		return "opened"
	default:
		return "unknown"
	}
}

// CloseCallback is called before the presenter removes a notification.
type CloseCallback func(n model.Notification, reason CloseReason)

// Config controls placement and auto-hide.
type Config struct {
	Layout Layout
	// Timeout returns the auto-hide delay for a priority; zero disables it.
	Timeout func(model.Priority) time.Duration
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithClock sets the clock used for auto-hide timers.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Presenter) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Presenter) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPreferenceGate sets the popup preference.
func WithPreferenceGate(gate PreferenceGate) Option {
	return func(p *Presenter) {
		p.gate = gate
	}
}

// Presenter is the renderer-side listener of the queue manager.
// It keeps the latest snapshot, places items and owns the auto-hide timer of
// the first item only.
type Presenter struct {
	q      Queue
	sink   Sink
	gate   PreferenceGate
	clock  clockwork.Clock
	logger *slog.Logger

	mu          sync.Mutex
	cfg         Config
	items       []model.Notification
	rendered    map[string]bool // render decision per notification, made once
	headID      string
	headExpires time.Time
	headTimer   clockwork.Timer
	listenerID  queue.ListenerID
	started     bool
	onClose     CloseCallback

	renderMu sync.Mutex
}

// NewPresenter creates a presenter rendering to sink.
func NewPresenter(q Queue, sink Sink, cfg Config, opts ...Option) *Presenter {
	if cfg.Layout.MaxVisible <= 0 {
		cfg.Layout = DefaultLayout()
	}
	if cfg.Timeout == nil {
		cfg.Timeout = func(model.Priority) time.Duration { return 0 }
	}
	p := &Presenter{
		q:        q,
		sink:     sink,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		rendered: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetCloseCallback sets the callback for presenter-initiated removals.
func (p *Presenter) SetCloseCallback(cb CloseCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = cb
}

// Start registers the presenter's single listener.
func (p *Presenter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.listenerID = p.q.AddListener(p.update)
}

// Stop unregisters the listener and cancels the auto-hide timer.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	p.q.RemoveListener(p.listenerID)
	p.stopHeadTimerLocked()
}

// UpdateConfig applies new layout and timeouts. The head's running timer
// keeps its deadline.
func (p *Presenter) UpdateConfig(cfg Config) {
	p.mu.Lock()
	if cfg.Layout.MaxVisible <= 0 {
		cfg.Layout = p.cfg.Layout
	}
	if cfg.Timeout == nil {
		cfg.Timeout = p.cfg.Timeout
	}
	p.cfg = cfg
	p.logger.Debug("presenter config updated", "max_visible", cfg.Layout.MaxVisible)
	p.renderLocked()
}

// Refresh re-renders the current snapshot, e.g. after preferences change.
// Render decisions already made for queued items are kept.
func (p *Presenter) Refresh() {
	p.mu.Lock()
	p.renderLocked()
}

// Current returns the notifications of the latest snapshot.
func (p *Presenter) Current() []model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Notification, len(p.items))
	copy(out, p.items)
	return out
}

// Dismiss removes a notification on user request.
func (p *Presenter) Dismiss(id string) {
	p.close(id, CloseReasonDismissed)
}

// Open removes a notification because the user acted on it and returns it
// so the caller can route it.
func (p *Presenter) Open(id string) (model.Notification, bool) {
	return p.close(id, CloseReasonOpened)
}

// DismissAll clears the queue on user request.
func (p *Presenter) DismissAll() {
	p.mu.Lock()
	items := make([]model.Notification, len(p.items))
	copy(items, p.items)
	cb := p.onClose
	p.mu.Unlock()

	if cb != nil {
		for _, n := range items {
			cb(n, CloseReasonDismissed)
		}
	}
	p.q.ClearAll()
}

func (p *Presenter) close(id string, reason CloseReason) (model.Notification, bool) {
	p.mu.Lock()
	n, ok := p.findLocked(id)
	cb := p.onClose
	p.mu.Unlock()

	if !ok {
		return model.Notification{}, false
	}
	if cb != nil {
		cb(n, reason)
	}
	p.q.RemoveNotification(id)
	return n, true
}

func (p *Presenter) findLocked(id string) (model.Notification, bool) {
	for _, n := range p.items {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// update is the queue listener.
func (p *Presenter) update(snapshot []model.Notification) {
	p.mu.Lock()
	p.items = snapshot

	live := make(map[string]bool, len(snapshot))
	for _, n := range snapshot {
		live[n.ID] = true
	}
	for id := range p.rendered {
		if !live[id] {
			delete(p.rendered, id)
		}
	}

	p.syncHeadLocked()
	p.renderLocked()
}

// syncHeadLocked (re)arms the auto-hide timer when the first item changes.
func (p *Presenter) syncHeadLocked() {
	var headID string
	if len(p.items) > 0 {
		headID = p.items[0].ID
	}
	if headID == p.headID {
		return
	}

	p.stopHeadTimerLocked()
	p.headID = headID
	if headID == "" {
		return
	}

	head := p.items[0]
	timeout := p.cfg.Timeout(head.Data.Priority)
	if timeout <= 0 {
		return
	}

	expires := p.clock.Now().Add(timeout)
	p.headExpires = expires
	p.headTimer = p.clock.AfterFunc(timeout, func() {
		p.expire(headID, expires)
	})
	p.logger.Debug("auto-hide armed", "id", headID, "timeout", timeout)
}

func (p *Presenter) stopHeadTimerLocked() {
	if p.headTimer != nil {
		p.headTimer.Stop()
		p.headTimer = nil
	}
	p.headID = ""
	p.headExpires = time.Time{}
}

func (p *Presenter) expire(id string, expires time.Time) {
	p.mu.Lock()
	if p.headID != id || !p.headExpires.Equal(expires) {
		p.mu.Unlock()
		return
	}
	n, _ := p.findLocked(id)
	cb := p.onClose
	p.headTimer = nil
	p.mu.Unlock()

	p.logger.Debug("notification expired", "id", id)
	if cb != nil {
		cb(n, CloseReasonExpired)
	}
	p.q.RemoveNotification(id)
}

// renderLocked builds a frame and hands it to the sink. It releases p.mu
// and keeps frames in order.
func (p *Presenter) renderLocked() {
	frame := p.frameLocked()
	p.renderMu.Lock()
	p.mu.Unlock()
	defer p.renderMu.Unlock()

	if p.sink != nil {
		p.sink.Render(frame)
	}
}

func (p *Presenter) frameLocked() Frame {
	frame := Frame{Queued: len(p.items)}
	popupsOn := p.gate == nil || p.gate.PopupsOn()

	for _, n := range p.items {
		show, decided := p.rendered[n.ID]
		if !decided {
			show = popupsOn
			p.rendered[n.ID] = show
		}
		if !show {
			frame.Suppressed++
			continue
		}
		if len(frame.Items) >= p.cfg.Layout.MaxVisible {
			frame.Hidden++
			continue
		}

		index := len(frame.Items)
		item := Item{
			Notification: n,
			Index:        index,
			OffsetY:      p.cfg.Layout.OffsetFor(index),
		}
		if n.ID == p.headID {
			item.ExpiresAt = p.headExpires
		}
		frame.Items = append(frame.Items, item)
	}
	return frame
}
