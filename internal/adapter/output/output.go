// Package output provides output formatters for notification history.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/notiq/internal/model"
)

// Formatter formats notifications for output.
type Formatter interface {
	// Format writes formatted notifications to the writer.
	Format(w io.Writer, notifications []model.Notification) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (FormatType, error) {
	switch f := FormatType(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPlain, FormatJSON, FormatYAML, FormatIDs:
		return f, nil
	case "":
		return FormatPlain, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template      string           // Custom template for plain format
	ShowIndex     bool             // Show 1-based index prefix
	ShowTime      bool             // Show relative time
	ShowSource    bool             // Show the payload source
	MessageMaxLen int              // Maximum message length (0 = unlimited)
	Now           func() time.Time // Reference time for relative times (nil = time.Now)
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowTime:      true,
		ShowSource:    true,
		MessageMaxLen: 120,
	}
}

func (o FormatterOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Notification *model.Notification
	RelativeTime string
}

// templateFuncs returns template helper functions.
func templateFuncs(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime": func(t time.Time) string {
			return relativeTime(t, now())
		},
		"kind": func(n *model.Notification) string {
			return string(n.Data.Kind())
		},
	}
}

// relativeTime returns a human-readable relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// singleLine collapses whitespace so a message fits on one line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
