package display

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/notiq/internal/model"
)

// Layout places stacked items.
type Layout struct {
	MaxVisible int // Maximum simultaneously placed items
	OffsetY    int // Offset of the first item
	ItemHeight int // Height of one item
	Gap        int // Gap between stacked items
}

// DefaultLayout returns the default stack layout.
func DefaultLayout() Layout {
	return Layout{
		MaxVisible: 5,
		OffsetY:    1,
		ItemHeight: 3,
		Gap:        1,
	}
}

// OffsetFor returns the vertical offset of the item at the given stack index.
func (l Layout) OffsetFor(index int) int {
	return l.OffsetY + index*(l.ItemHeight+l.Gap)
}

// Item is a placed notification.
type Item struct {
	Notification model.Notification
	Index        int
	OffsetY      int
	ExpiresAt    time.Time // Zero means never expires or not the head
}

// Frame is what the renderer should show.
type Frame struct {
	Items      []Item
	Queued     int // Total notifications in the queue
	Hidden     int // Rendered items beyond MaxVisible
	Suppressed int // Items not rendered because popups are disabled
}

// Head returns the first placed item.
func (f Frame) Head() (Item, bool) {
	if len(f.Items) == 0 {
		return Item{}, false
	}
	return f.Items[0], true
}

// Sink receives frames.
type Sink interface {
	Render(Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

// Render calls f.
func (f SinkFunc) Render(frame Frame) { f(frame) }

// LogSink renders frames as log records. Used when running headless.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Render logs every placed item.
func (s *LogSink) Render(frame Frame) {
	s.logger.Debug("frame",
		"queued", frame.Queued,
		"placed", len(frame.Items),
		"hidden", frame.Hidden,
		"suppressed", frame.Suppressed,
	)
	for _, item := range frame.Items {
		attrs := []any{
			"id", item.Notification.ID,
			"title", item.Notification.Title,
			"kind", item.Notification.Data.Kind(),
			"priority", item.Notification.Data.Priority.String(),
			"offset_y", item.OffsetY,
		}
		if !item.ExpiresAt.IsZero() {
			attrs = append(attrs, "expires_at", item.ExpiresAt.Format(time.TimeOnly))
		}
		s.logger.Info("notification", attrs...)
	}
}
