package daemon

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notiq/internal/model"
)

type submitRecorder struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *submitRecorder) ShowNotification(n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *submitRecorder) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.sent...)
}

func TestInternalNotifier_Payload(t *testing.T) {
	rec := &submitRecorder{}
	n := NewInternalNotifier(rec, clockwork.NewFakeClock(), nil)

	n.NotifyConfigError(errors.New("bad value"))

	sent := rec.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "Configuration Error", sent[0].Title)
	assert.Contains(t, sent[0].Message, "bad value")
	assert.Equal(t, InternalSource, sent[0].Data.Source)
	assert.Equal(t, model.PriorityNormal, sent[0].Data.Priority)
	assert.Equal(t, model.Kind("internal"), sent[0].Data.Kind())
}

func TestInternalNotifier_RateLimitPerKey(t *testing.T) {
	rec := &submitRecorder{}
	clock := clockwork.NewFakeClock()
	n := NewInternalNotifier(rec, clock, nil)
	n.SetMinInterval(10 * time.Second)

	assert.True(t, n.Notify("a", "A", "", NotificationLevelInfo))
	assert.False(t, n.Notify("a", "A", "", NotificationLevelInfo))
	assert.True(t, n.Notify("b", "B", "", NotificationLevelInfo))

	clock.Advance(10 * time.Second)
	assert.True(t, n.Notify("a", "A", "", NotificationLevelInfo))
	assert.Len(t, rec.all(), 3)
}

func TestInternalNotifier_Disabled(t *testing.T) {
	rec := &submitRecorder{}
	n := NewInternalNotifier(rec, clockwork.NewFakeClock(), nil)
	n.SetEnabled(false)

	n.NotifyStartup("1.0.0")
	assert.Empty(t, rec.all())
}

func TestNotificationLevel_Priority(t *testing.T) {
	assert.Equal(t, model.PriorityLow, NotificationLevelInfo.Priority())
	assert.Equal(t, model.PriorityNormal, NotificationLevelWarning.Priority())
	assert.Equal(t, model.PriorityHigh, NotificationLevelError.Priority())
}
