// Package navigation routes tapped notifications to detail screens.
package navigation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/model"
)

// Screen names.
const (
	ScreenProjectDetails = "ProjectDetails"
	ScreenTaskDetails    = "TaskDetails"
	ScreenIssueDetails   = "IssueDetails"
)

// Route parameter keys.
const (
	ParamProjectID = model.KeyProjectID
	ParamTaskID    = model.KeyTaskID
	ParamIssueID   = model.KeyIssueID
)

// Default retry behaviour while the navigator is not ready.
const (
	DefaultRetryDelay  = 1000 * time.Millisecond
	DefaultMaxAttempts = 5
)

// Navigator is the host that displays screens. Ready reports whether it can
// accept navigation yet.
type Navigator interface {
	Ready() bool
	Navigate(screen string, params map[string]string) error
}

// Route is a resolved navigation target.
type Route struct {
	Screen string
	Params map[string]string
}

// Resolve maps a payload to its route. It returns false for payloads that do
// not route anywhere (test, unknown or missing subject).
func Resolve(data model.Data) (Route, bool) {
	switch s := data.Subject.(type) {
	case model.ProjectSubject:
		return Route{Screen: ScreenProjectDetails, Params: map[string]string{ParamProjectID: s.ProjectID}}, true
	case model.TaskSubject:
		return Route{Screen: ScreenTaskDetails, Params: map[string]string{ParamTaskID: s.TaskID}}, true
	case model.IssueSubject:
		return Route{Screen: ScreenIssueDetails, Params: map[string]string{ParamIssueID: s.IssueID}}, true
	}
	return Route{}, false
}

// Config controls retries while the navigator is not ready.
type Config struct {
	RetryDelay  time.Duration
	MaxAttempts int
}

// DefaultConfig returns the default retry settings.
func DefaultConfig() Config {
	return Config{
		RetryDelay:  DefaultRetryDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Option configures a Router.
type Option func(*Router)

// WithClock sets the clock used for retry timers.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Router) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Router turns notification payloads into navigator calls.
type Router struct {
	nav    Navigator
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	retries map[uint64]clockwork.Timer
	nextID  uint64
	closed  bool
}

// NewRouter creates a router for the given navigator.
func NewRouter(nav Navigator, cfg Config, opts ...Option) *Router {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	r := &Router{
		nav:     nav,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		retries: make(map[uint64]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes a tapped notification. Payloads without a route are logged
// and ignored. When the navigator is not ready the attempt is retried after
// RetryDelay, up to MaxAttempts attempts in total.
func (r *Router) Handle(data model.Data) {
	route, ok := Resolve(data)
	if !ok {
		r.logger.Warn("notification has no route",
			"type", data.Kind(),
		)
		return
	}
	r.attempt(route, 1)
}

// Pending returns the number of scheduled retries.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retries)
}

// Close cancels every scheduled retry. Handle is a no-op afterwards.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, t := range r.retries {
		t.Stop()
		delete(r.retries, id)
	}
}

func (r *Router) attempt(route Route, attempt int) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	if r.nav.Ready() {
		if err := r.nav.Navigate(route.Screen, route.Params); err != nil {
			r.logger.Error("navigation failed",
				"screen", route.Screen,
				"attempt", attempt,
				"error", err,
			)
			return
		}
		r.logger.Debug("navigated", "screen", route.Screen, "attempt", attempt)
		return
	}

	if attempt >= r.cfg.MaxAttempts {
		r.logger.Warn("navigator not ready, giving up",
			"screen", route.Screen,
			"attempt", attempt,
		)
		return
	}

	r.logger.Debug("navigator not ready, retrying",
		"screen", route.Screen,
		"attempt", attempt,
		"delay", r.cfg.RetryDelay,
	)
	r.schedule(route, attempt+1)
}

func (r *Router) schedule(route Route, next int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.nextID++
	id := r.nextID
	r.retries[id] = r.clock.AfterFunc(r.cfg.RetryDelay, func() {
		r.mu.Lock()
		_, live := r.retries[id]
		delete(r.retries, id)
		r.mu.Unlock()
		if live {
			r.attempt(route, next)
		}
	})
}
