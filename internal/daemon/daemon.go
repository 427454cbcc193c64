package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/config"
	"github.com/jmylchreest/notiq/internal/dbus"
	"github.com/jmylchreest/notiq/internal/display"
	"github.com/jmylchreest/notiq/internal/model"
	"github.com/jmylchreest/notiq/internal/navigation"
	"github.com/jmylchreest/notiq/internal/queue"
	"github.com/jmylchreest/notiq/internal/store"
)

// Options holds the collaborators and paths of a Daemon. Zero values select
// defaults.
type Options struct {
	ConfigPath      string
	HistoryPath     string
	PreferencesPath string
	Version         string

	// Sink receives rendered frames; nil logs them.
	Sink display.Sink
	// Navigator hosts detail screens; nil logs routes.
	Navigator navigation.Navigator

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Daemon owns one queue manager and everything attached to it.
type Daemon struct {
	opts   Options
	logger *slog.Logger
	clock  clockwork.Clock

	manager   *queue.Manager
	presenter *display.Presenter
	router    *navigation.Router
	history   *store.Store
	prefs     *store.PreferenceSource
	tracker   *DisplayTracker
	notifier  *InternalNotifier
	server    *dbus.NotificationServer

	prefsWatcher  *store.FileWatcher
	configWatcher *ConfigWatcher

	cfg             *config.DaemonConfig
	historyListener queue.ListenerID
	cancel          context.CancelFunc
}

// New builds a daemon from cfg. Nothing runs until Start.
func New(cfg *config.DaemonConfig, opts Options) (*Daemon, error) {
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistoryPath == "" {
		opts.HistoryPath = config.HistoryPath()
	}
	if opts.PreferencesPath == "" {
		opts.PreferencesPath = config.PreferencesPath()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger

	d := &Daemon{
		opts:    opts,
		logger:  logger,
		clock:   opts.Clock,
		cfg:     cfg,
		tracker: NewDisplayTracker(opts.Clock),
	}

	d.manager = queue.NewManager(queueConfig(cfg),
		queue.WithClock(opts.Clock),
		queue.WithLogger(logger.With("component", "queue")),
	)

	persistence, err := store.NewJSONLPersistence(opts.HistoryPath)
	if err != nil {
		d.manager.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	d.history = store.NewStore(persistence)
	if err := d.history.Hydrate(); err != nil {
		logger.Warn("failed to load history", "path", opts.HistoryPath, "error", err)
	}

	d.prefs, err = store.NewPreferenceSource(opts.PreferencesPath)
	if err != nil {
		d.manager.Close()
		_ = d.history.Close()
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	sink := opts.Sink
	if sink == nil {
		sink = display.NewLogSink(logger.With("component", "display"))
	}
	d.presenter = display.NewPresenter(d.manager, display.SinkFunc(func(frame display.Frame) {
		d.trackFrame(frame)
		sink.Render(frame)
	}), displayConfig(cfg),
		display.WithClock(opts.Clock),
		display.WithLogger(logger.With("component", "presenter")),
		display.WithPreferenceGate(d.prefs),
	)
	d.presenter.SetCloseCallback(d.handlePresenterClose)

	nav := opts.Navigator
	if nav == nil {
		nav = logNavigator{logger: logger}
	}
	d.router = navigation.NewRouter(nav, navigationConfig(cfg),
		navigation.WithClock(opts.Clock),
		navigation.WithLogger(logger.With("component", "navigation")),
	)

	d.notifier = NewInternalNotifier(d.manager, opts.Clock, logger)
	d.applyNotifierConfig(cfg)

	d.server = dbus.NewNotificationServer(logger.With("component", "dbus"))
	d.server.SetServerInfo(dbus.ServerInfo{
		Name:        "notiqd",
		Vendor:      "notiq",
		Version:     opts.Version,
		SpecVersion: "1.2",
	})
	d.server.SetNotifyHandler(d.handleBusNotify)
	d.server.SetCloseHandler(d.handleBusClose)

	d.configWatcher = NewConfigWatcher(opts.ConfigPath, opts.Clock, logger)
	d.configWatcher.SetReloadCallback(d.applyConfig)
	d.configWatcher.SetErrorCallback(d.notifier.NotifyConfigError)

	return d, nil
}

// Start attaches listeners, starts watchers and claims the bus name when
// the D-Bus transport is enabled.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	d.historyListener = d.manager.AddListener(d.recordHistory)
	d.presenter.Start()

	w, err := store.NewPreferencesWatcher(d.prefs, d.presenter.Refresh, d.logger)
	if err != nil {
		d.logger.Warn("preferences watcher unavailable", "error", err)
	} else if err := w.Start(); err != nil {
		d.logger.Warn("failed to watch preferences", "path", d.prefs.Path(), "error", err)
		_ = w.Stop()
	} else {
		d.prefsWatcher = w
	}

	d.configWatcher.Start(ctx, d.cfg)

	if d.cfg.Transport.DBus {
		if err := d.server.Start(); err != nil {
			d.notifier.NotifyTransportError(err)
			return fmt.Errorf("failed to start D-Bus server: %w", err)
		}
	}

	d.notifier.NotifyStartup(d.opts.Version)
	d.logger.Info("notiqd started",
		"version", d.opts.Version,
		"dbus", d.cfg.Transport.DBus,
		"history", d.opts.HistoryPath,
	)
	return nil
}

// Stop tears everything down in reverse order.
func (d *Daemon) Stop() {
	if d.cfg.Transport.DBus {
		if err := d.server.Stop(); err != nil {
			d.logger.Warn("failed to stop D-Bus server", "error", err)
		}
	}
	d.configWatcher.Stop()
	if d.prefsWatcher != nil {
		_ = d.prefsWatcher.Stop()
	}
	if d.cancel != nil {
		d.cancel()
	}

	d.presenter.Stop()
	d.router.Close()
	d.manager.RemoveListener(d.historyListener)
	d.manager.Close()
	if err := d.history.Close(); err != nil {
		d.logger.Warn("failed to close history", "error", err)
	}
	d.logger.Info("notiqd stopped")
}

// Manager returns the queue manager.
func (d *Daemon) Manager() *queue.Manager { return d.manager }

// Tracker returns the bus id tracker.
func (d *Daemon) Tracker() *DisplayTracker { return d.tracker }

// Server returns the D-Bus server. It is only connected when the transport
// is enabled.
func (d *Daemon) Server() *dbus.NotificationServer { return d.server }

// Submit queues a notification that did not arrive over the bus.
func (d *Daemon) Submit(n model.Notification) {
	d.manager.ShowNotification(n)
}

// Dismiss removes a notification on user request.
func (d *Daemon) Dismiss(id string) {
	d.presenter.Dismiss(id)
}

// DismissAll clears every notification on user request.
func (d *Daemon) DismissAll() {
	d.presenter.DismissAll()
}

// Open removes a notification and routes its payload.
func (d *Daemon) Open(id string) bool {
	n, ok := d.presenter.Open(id)
	if !ok {
		return false
	}
	d.router.Handle(n.Data)
	return true
}

// TogglePopups flips the persisted popup preference.
func (d *Daemon) TogglePopups() (bool, error) {
	enabled := !d.prefs.PopupsOn()
	if err := d.prefs.SetPopups(enabled, "notiqd"); err != nil {
		return !enabled, err
	}
	d.presenter.Refresh()
	return enabled, nil
}

// PopupsOn reports the current popup preference.
func (d *Daemon) PopupsOn() bool {
	return d.prefs.PopupsOn()
}

func (d *Daemon) handleBusNotify(n *dbus.DBusNotification, busID uint32) {
	notification := n.ToNotification()
	id, err := model.NewID(d.clock.Now())
	if err != nil {
		d.logger.Warn("failed to generate id", "bus_id", busID, "error", err)
		d.server.MarkClosed(busID)
		return
	}
	notification.ID = id

	if prev, ok := d.tracker.ByBusID(busID); ok {
		d.tracker.Finish(prev.NotificationID, DisplayStatusClosed)
		d.manager.RemoveNotification(prev.NotificationID)
	}

	// Registered before queueing so listeners always find the mapping.
	d.tracker.Register(id, busID)
	d.manager.ShowNotification(notification)
	if _, accepted := d.manager.Get(id); !accepted {
		// Rejected as a duplicate; the sender's id is released at once.
		d.tracker.Finish(id, DisplayStatusClosed)
		d.server.MarkClosed(busID)
	}
}

func (d *Daemon) handleBusClose(busID uint32) {
	state, ok := d.tracker.ByBusID(busID)
	if !ok {
		return
	}
	d.tracker.Finish(state.NotificationID, DisplayStatusClosed)
	d.manager.RemoveNotification(state.NotificationID)
}

func (d *Daemon) handlePresenterClose(n model.Notification, reason display.CloseReason) {
	state, ok := d.tracker.Finish(n.ID, statusFor(reason))
	if !ok {
		return
	}
	d.logger.Debug("notification closed",
		"id", n.ID,
		"bus_id", state.BusID,
		"status", state.Status.String(),
		"shown_for", state.ClosedAt.Sub(state.CreatedAt),
	)

	var err error
	if reason == display.CloseReasonOpened {
		err = d.server.InvokeAction(state.BusID, "default", false)
	} else {
		err = d.server.CloseWithReason(state.BusID, busCloseReason(reason))
	}
	if err != nil && !errors.Is(err, dbus.ErrNotConnected) {
		d.logger.Warn("failed to signal close", "bus_id", state.BusID, "reason", reason.String(), "error", err)
	}
}

func (d *Daemon) trackFrame(frame display.Frame) {
	ids := make([]string, 0, len(frame.Items))
	for _, item := range frame.Items {
		ids = append(ids, item.Notification.ID)
	}
	d.tracker.MarkDisplayed(ids)
}

func (d *Daemon) recordHistory(snapshot []model.Notification) {
	added, err := d.history.Record(snapshot)
	if err != nil {
		d.logger.Warn("failed to record history", "error", err)
		return
	}
	if added > 0 {
		d.logger.Debug("history recorded", "added", added, "total", d.history.Count())
	}
}

func (d *Daemon) applyConfig(cfg *config.DaemonConfig) {
	d.manager.SetConfig(queueConfig(cfg))
	d.presenter.UpdateConfig(displayConfig(cfg))
	d.applyNotifierConfig(cfg)
	if cfg.Navigation != d.cfg.Navigation {
		d.logger.Info("navigation settings take effect after restart")
	}
	if cfg.Transport != d.cfg.Transport {
		d.logger.Info("transport settings take effect after restart")
	}
	d.notifier.NotifyConfigReloaded()
}

func (d *Daemon) applyNotifierConfig(cfg *config.DaemonConfig) {
	d.notifier.SetEnabled(cfg.Internal.Enabled)
	d.notifier.SetMinInterval(cfg.Internal.MinInterval.Duration())
}

func queueConfig(cfg *config.DaemonConfig) queue.Config {
	return queue.Config{
		PendingWindow: cfg.Queue.PendingWindow.Duration(),
		RecentWindow:  cfg.Queue.RecentWindow.Duration(),
	}
}

func displayConfig(cfg *config.DaemonConfig) display.Config {
	return display.Config{
		Layout: display.Layout{
			MaxVisible: cfg.Display.MaxVisible,
			OffsetY:    cfg.Display.OffsetY,
			ItemHeight: cfg.Display.ItemHeight,
			Gap:        cfg.Display.Gap,
		},
		Timeout: cfg.GetTimeoutForPriority,
	}
}

func navigationConfig(cfg *config.DaemonConfig) navigation.Config {
	return navigation.Config{
		RetryDelay:  cfg.Navigation.RetryDelay.Duration(),
		MaxAttempts: cfg.Navigation.MaxAttempts,
	}
}

// logNavigator stands in for a UI host in headless mode.
type logNavigator struct {
	logger *slog.Logger
}

func (n logNavigator) Ready() bool { return true }

func (n logNavigator) Navigate(screen string, params map[string]string) error {
	n.logger.Info("navigate", "screen", screen, "params", params)
	return nil
}
