package display

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notiq/internal/model"
	"github.com/jmylchreest/notiq/internal/queue"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) Render(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *frameRecorder) last() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}
	}
	return r.frames[len(r.frames)-1]
}

func (r *frameRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type gate struct{ on atomic.Bool }

func (g *gate) PopupsOn() bool { return g.on.Load() }

type closeRecorder struct {
	mu      sync.Mutex
	reasons map[string]CloseReason
}

func (c *closeRecorder) record(n model.Notification, reason CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reasons == nil {
		c.reasons = make(map[string]CloseReason)
	}
	c.reasons[n.ID] = reason
}

func (c *closeRecorder) reason(id string) CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reasons[id]
}

const normalTimeout = 10 * time.Second

func testTimeouts(p model.Priority) time.Duration {
	if p == model.PriorityHigh {
		return 0
	}
	return normalTimeout
}

type fixture struct {
	m     *queue.Manager
	clock *clockwork.FakeClock
	sink  *frameRecorder
	p     *Presenter
}

func newFixture(t *testing.T, layout Layout, opts ...Option) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := queue.NewManager(queue.DefaultConfig(), queue.WithClock(clock))
	sink := &frameRecorder{}
	opts = append([]Option{WithClock(clock)}, opts...)
	p := NewPresenter(m, sink, Config{Layout: layout, Timeout: testTimeouts}, opts...)
	p.Start()
	t.Cleanup(func() {
		p.Stop()
		m.Close()
	})
	return &fixture{m: m, clock: clock, sink: sink, p: p}
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.m.Flush(ctx))
}

func (f *fixture) show(id string, priority model.Priority) {
	f.m.ShowNotification(model.Notification{
		ID:    id,
		Title: "Title " + id,
		Data:  model.Data{Subject: model.TaskSubject{TaskID: id}, Priority: priority},
	})
}

func TestLayout_OffsetFor(t *testing.T) {
	l := Layout{OffsetY: 10, ItemHeight: 100, Gap: 5}
	assert.Equal(t, 10, l.OffsetFor(0))
	assert.Equal(t, 115, l.OffsetFor(1))
	assert.Equal(t, 220, l.OffsetFor(2))
}

func TestPresenter_PlacesItems(t *testing.T) {
	f := newFixture(t, Layout{MaxVisible: 2, OffsetY: 1, ItemHeight: 3, Gap: 1})

	f.show("a", model.PriorityNormal)
	f.show("b", model.PriorityNormal)
	f.show("c", model.PriorityNormal)
	f.flush(t)

	frame := f.sink.last()
	require.Len(t, frame.Items, 2)
	assert.Equal(t, "a", frame.Items[0].Notification.ID)
	assert.Equal(t, 1, frame.Items[0].OffsetY)
	assert.Equal(t, 5, frame.Items[1].OffsetY)
	assert.Equal(t, 3, frame.Queued)
	assert.Equal(t, 1, frame.Hidden)

	head, ok := frame.Head()
	require.True(t, ok)
	assert.False(t, head.ExpiresAt.IsZero())
	assert.True(t, frame.Items[1].ExpiresAt.IsZero())
}

func TestPresenter_AutoHidesHeadOnly(t *testing.T) {
	f := newFixture(t, DefaultLayout())
	closes := &closeRecorder{}
	f.p.SetCloseCallback(closes.record)

	f.show("a", model.PriorityNormal)
	f.show("b", model.PriorityNormal)
	f.flush(t)

	f.clock.Advance(normalTimeout)
	assert.Eventually(t, func() bool { return f.m.Len() == 1 }, time.Second, 5*time.Millisecond)
	f.flush(t)

	assert.Equal(t, 1, f.m.Len())
	assert.Equal(t, "b", f.m.Snapshot()[0].ID)
	assert.Equal(t, CloseReasonExpired, closes.reason("a"))

	f.clock.Advance(normalTimeout)
	assert.Eventually(t, func() bool { return f.m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPresenter_ZeroTimeoutNeverExpires(t *testing.T) {
	f := newFixture(t, DefaultLayout())

	f.show("urgent", model.PriorityHigh)
	f.flush(t)

	f.clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	f.flush(t)

	assert.Equal(t, 1, f.m.Len())
	head, ok := f.sink.last().Head()
	require.True(t, ok)
	assert.True(t, head.ExpiresAt.IsZero())
}

func TestPresenter_DismissRearmsForNewHead(t *testing.T) {
	f := newFixture(t, DefaultLayout())
	closes := &closeRecorder{}
	f.p.SetCloseCallback(closes.record)

	f.show("a", model.PriorityNormal)
	f.show("b", model.PriorityNormal)
	f.flush(t)

	f.clock.Advance(normalTimeout / 2)
	f.p.Dismiss("a")
	f.flush(t)
	assert.Equal(t, CloseReasonDismissed, closes.reason("a"))

	// a's original deadline passes; b was armed at dismissal time.
	f.clock.Advance(normalTimeout / 2)
	time.Sleep(20 * time.Millisecond)
	f.flush(t)
	assert.Equal(t, 1, f.m.Len())

	f.clock.Advance(normalTimeout / 2)
	assert.Eventually(t, func() bool { return f.m.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, CloseReasonExpired, closes.reason("b"))
}

func TestPresenter_PreferenceGate(t *testing.T) {
	g := &gate{}
	f := newFixture(t, DefaultLayout(), WithPreferenceGate(g))

	f.show("hidden", model.PriorityNormal)
	f.flush(t)

	frame := f.sink.last()
	assert.Empty(t, frame.Items)
	assert.Equal(t, 1, frame.Suppressed)
	assert.Equal(t, 1, f.m.Len(), "manager queues regardless of the preference")

	g.on.Store(true)
	f.p.Refresh()
	assert.Empty(t, f.sink.last().Items, "decision is made once per notification")

	f.show("shown", model.PriorityNormal)
	f.flush(t)

	frame = f.sink.last()
	require.Len(t, frame.Items, 1)
	assert.Equal(t, "shown", frame.Items[0].Notification.ID)
	assert.Equal(t, 1, frame.Items[0].OffsetY)
}

func TestPresenter_Open(t *testing.T) {
	f := newFixture(t, DefaultLayout())
	closes := &closeRecorder{}
	f.p.SetCloseCallback(closes.record)

	f.show("a", model.PriorityNormal)
	f.flush(t)

	n, ok := f.p.Open("a")
	require.True(t, ok)
	assert.Equal(t, model.TaskSubject{TaskID: "a"}, n.Data.Subject)
	assert.Equal(t, CloseReasonOpened, closes.reason("a"))
	assert.Equal(t, 0, f.m.Len())

	_, ok = f.p.Open("missing")
	assert.False(t, ok)
}

func TestPresenter_DismissAll(t *testing.T) {
	f := newFixture(t, DefaultLayout())
	closes := &closeRecorder{}
	f.p.SetCloseCallback(closes.record)

	f.show("a", model.PriorityNormal)
	f.show("b", model.PriorityLow)
	f.flush(t)

	f.p.DismissAll()
	f.flush(t)

	assert.Equal(t, 0, f.m.Len())
	assert.Empty(t, f.sink.last().Items)
	assert.Equal(t, CloseReasonDismissed, closes.reason("a"))
	assert.Equal(t, CloseReasonDismissed, closes.reason("b"))
}

func TestPresenter_UpdateConfig(t *testing.T) {
	f := newFixture(t, DefaultLayout())

	f.show("a", model.PriorityNormal)
	f.show("b", model.PriorityNormal)
	f.flush(t)

	f.p.UpdateConfig(Config{Layout: Layout{MaxVisible: 1, OffsetY: 0, ItemHeight: 2, Gap: 0}})

	frame := f.sink.last()
	require.Len(t, frame.Items, 1)
	assert.Equal(t, 0, frame.Items[0].OffsetY)
	assert.Equal(t, 1, frame.Hidden)
}

func TestPresenter_Stop(t *testing.T) {
	f := newFixture(t, DefaultLayout())

	f.show("a", model.PriorityNormal)
	f.flush(t)
	before := f.sink.count()

	f.p.Stop()
	f.show("b", model.PriorityNormal)
	f.flush(t)

	assert.Equal(t, before, f.sink.count())
	assert.Len(t, f.p.Current(), 1)
}

func TestCloseReason_String(t *testing.T) {
	assert.Equal(t, "expired", CloseReasonExpired.String())
	assert.Equal(t, "dismissed", CloseReasonDismissed.String())
	assert.Equal(t, "opened", CloseReasonOpened.String())
	assert.Equal(t, "unknown", CloseReason(0).String())
}
