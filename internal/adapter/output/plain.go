package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/notiq/internal/model"
)

// PlainFormatter formats notifications as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs(opts.now)).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes notifications as plain text.
func (f *PlainFormatter) Format(w io.Writer, notifications []model.Notification) error {
	for i := range notifications {
		if err := f.formatNotification(w, i+1, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatNotification(w io.Writer, index int, n *model.Notification) error {
	if f.template != nil {
		data := templateData{
			Index:        index,
			Notification: n,
			RelativeTime: relativeTime(n.Timestamp, f.opts.now()),
		}
		if err := f.template.Execute(w, data); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	if n.Data.Priority == model.PriorityHigh {
		sb.WriteString("! ")
	}
	if f.opts.ShowSource && n.Data.Source != "" {
		fmt.Fprintf(&sb, "<%s> ", n.Data.Source)
	}

	sb.WriteString(n.Title)

	if kind := n.Data.Kind(); kind != "" {
		fmt.Fprintf(&sb, " [%s]", kind)
	}
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " (%s)", relativeTime(n.Timestamp, f.opts.now()))
	}
	sb.WriteString("\n")

	if n.Message != "" {
		msg := truncate(singleLine(n.Message), f.opts.MessageMaxLen)
		sb.WriteString("    " + msg + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
