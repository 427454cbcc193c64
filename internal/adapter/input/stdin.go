package input

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jmylchreest/notiq/internal/model"
)

var _ InputAdapter = (*StdinAdapter)(nil)

// StdinAdapter reads notifications from standard input.
type StdinAdapter struct {
	reader io.Reader
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter() *StdinAdapter {
	return &StdinAdapter{reader: os.Stdin}
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader) *StdinAdapter {
	return &StdinAdapter{reader: r}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return "stdin"
}

// Import reads notifications in the history wire shape. The input may be a
// JSON array or a stream of objects, one per line. Entries without a title
// are passed through; the queue tolerates them.
func (a *StdinAdapter) Import(ctx context.Context) ([]model.Notification, error) {
	br := bufio.NewReader(a.reader)

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &AdapterError{Source: a.Name(), Message: "failed to read stdin", Err: err}
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var entries []model.Notification
		if err := dec.Decode(&entries); err != nil {
			return nil, &AdapterError{Source: a.Name(), Message: "failed to parse JSON input", Err: err}
		}
		return normalize(entries), nil
	}

	var entries []model.Notification
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var n model.Notification
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &AdapterError{Source: a.Name(), Message: "failed to parse JSON input", Err: err}
		}
		entries = append(entries, n)
	}
	return normalize(entries), nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

func normalize(entries []model.Notification) []model.Notification {
	for i := range entries {
		entries[i].Title = strings.TrimSpace(entries[i].Title)
	}
	return entries
}
