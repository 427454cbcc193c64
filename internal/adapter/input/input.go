// Package input provides input adapters that read notifications to send.
package input

import (
	"context"

	"github.com/jmylchreest/notiq/internal/model"
)

// InputAdapter reads notifications from a source.
type InputAdapter interface {
	// Name returns the adapter identifier (e.g., "stdin").
	Name() string

	// Import reads every notification the source holds.
	Import(ctx context.Context) ([]model.Notification, error)
}

// AdapterError represents an adapter-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
