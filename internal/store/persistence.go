package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/notiq/internal/model"
)

// SchemaVersion is the current history file schema version.
const SchemaVersion = 1

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// ErrUnsupportedSchema is returned when the history file was written by a newer version.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// Persistence defines the interface for history storage.
type Persistence interface {
	// Load reads all notifications from storage.
	Load() ([]model.Notification, error)

	// Append adds a notification to storage.
	Append(n model.Notification) error

	// Rewrite replaces the entire storage file (used after prune).
	Rewrite(ns []model.Notification) error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	NotiqSchemaVersion int   `json:"notiq_schema_version"`
	CreatedAt          int64 `json:"created_at"`
}

// maxLineSize bounds a single history line.
const maxLineSize = 1024 * 1024

// JSONLPersistence implements Persistence using a JSONL file.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence opens the history file, creating it with a schema
// header if it does not exist.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return p, nil
}

// Path returns the file backing the persistence.
func (p *JSONLPersistence) Path() string {
	return p.path
}

func (p *JSONLPersistence) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		NotiqSchemaVersion: SchemaVersion,
		CreatedAt:          time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	_, err = p.file.Write(append(data, '\n'))
	return err
}

// Load reads all notifications from storage. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.Notification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	notifications, err := decodeHistory(p.file)
	if err != nil {
		return notifications, err
	}

	// Seek back to end for appending
	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return notifications, err
	}

	return notifications, nil
}

// decodeHistory parses a JSONL history stream.
func decodeHistory(r io.Reader) ([]model.Notification, error) {
	var notifications []model.Notification

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.NotiqSchemaVersion > 0 {
				if header.NotiqSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("%w %d (max: %d)", ErrUnsupportedSchema,
						header.NotiqSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var n model.Notification
		if err := json.Unmarshal(line, &n); err != nil {
			continue
		}
		if n.ID != "" {
			notifications = append(notifications, n)
		}
	}

	if err := scanner.Err(); err != nil {
		return notifications, fmt.Errorf("error reading history: %w", err)
	}
	return notifications, nil
}

// Append adds a notification to storage.
func (p *JSONLPersistence) Append(n model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", n.ID, err)
	}

	if _, err := p.file.Write(append(data, '\n')); err != nil {
		return err
	}

	return p.file.Sync()
}

// Rewrite replaces the entire storage file. The previous file is kept as a
// .bak until the new one has been written.
func (p *JSONLPersistence) Rewrite(ns []model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	if err := p.writeHeader(); err != nil {
		return err
	}

	w := bufio.NewWriter(p.file)
	for _, n := range ns {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification %s: %w", n.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if err := p.file.Sync(); err != nil {
		return err
	}

	os.Remove(backupPath)
	return nil
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// ReadHistory reads a history file without opening it for writing.
// A missing file yields no notifications.
func ReadHistory(path string) ([]model.Notification, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	defer file.Close()

	return decodeHistory(file)
}
