// Package model defines the core data structures for notiq.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Notification is the unit of work handled by the queue manager.
// ID and Timestamp are filled in by the manager when the transport omits them.
type Notification struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	Data      Data      `json:"data" yaml:"data"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Validation errors.
var (
	ErrEmptyID        = errors.New("id cannot be empty")
	ErrEmptyTitle     = errors.New("title cannot be empty")
	ErrZeroTimestamp  = errors.New("timestamp must be set")
	ErrInvalidPayload = errors.New("invalid notification payload")
)

// NewID generates a ULID for the given instant.
func NewID(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// Validate checks that the notification has every field needed for display.
// The queue manager does not reject invalid notifications; this is used by
// the CLI and tests to report problems.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.Title == "" {
		return ErrEmptyTitle
	}
	if n.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// DedupeKey returns the composite identity used to recognise logically
// identical notifications regardless of their generated id.
func (n *Notification) DedupeKey() string {
	projectID, taskID, issueID := n.Data.correlation()
	return strings.Join([]string{
		n.Title,
		string(n.Data.Kind()),
		issueID,
		projectID,
		taskID,
	}, "|")
}

// Clone returns a copy of the notification.
// Subjects are value types so a shallow copy is sufficient.
func (n *Notification) Clone() *Notification {
	clone := *n
	return &clone
}

// MessageTruncated returns the message truncated to maxLen characters.
// If the message is longer, it is truncated and "..." is appended.
func (n *Notification) MessageTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	// Collapse whitespace and newlines to single spaces
	msg := strings.Join(strings.Fields(n.Message), " ")

	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Age returns how long ago the notification was created relative to now.
func (n *Notification) Age(now time.Time) time.Duration {
	return now.Sub(n.Timestamp)
}
