package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validNotification() Notification {
	return Notification{
		ID:        "01HZX3A2ZK7Q4J7V3M5N6P8R9S",
		Title:     "New Task Assigned",
		Message:   "You have been assigned a task",
		Data:      Data{Subject: TaskSubject{TaskID: "12345"}, Priority: PriorityNormal},
		Timestamp: time.Unix(1700000000, 0),
	}
}

func TestNewID(t *testing.T) {
	now := time.Now()
	a, err := NewID(now)
	require.NoError(t, err)
	b, err := NewID(now)
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestNotification_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Notification)
		wantErr error
	}{
		{
			name:    "valid notification",
			modify:  func(n *Notification) {},
			wantErr: nil,
		},
		{
			name:    "empty id",
			modify:  func(n *Notification) { n.ID = "" },
			wantErr: ErrEmptyID,
		},
		{
			name:    "empty title",
			modify:  func(n *Notification) { n.Title = "" },
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "zero timestamp",
			modify:  func(n *Notification) { n.Timestamp = time.Time{} },
			wantErr: ErrZeroTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validNotification()
			tt.modify(&n)
			err := n.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNotification_DedupeKey(t *testing.T) {
	tests := []struct {
		name     string
		n        Notification
		expected string
	}{
		{
			name:     "task",
			n:        Notification{Title: "New Task Assigned", Data: Data{Subject: TaskSubject{TaskID: "12345"}}},
			expected: "New Task Assigned|task|||12345",
		},
		{
			name:     "project",
			n:        Notification{Title: "Invited", Data: Data{Subject: ProjectSubject{ProjectID: "p1"}}},
			expected: "Invited|project||p1|",
		},
		{
			name:     "issue",
			n:        Notification{Title: "Issue opened", Data: Data{Subject: IssueSubject{IssueID: "i9"}}},
			expected: "Issue opened|issue|i9||",
		},
		{
			name:     "no subject",
			n:        Notification{Title: "Hello"},
			expected: "Hello||||",
		},
		{
			name:     "unknown subject keeps type",
			n:        Notification{Title: "x", Data: Data{Subject: UnknownSubject{Type: "comment"}}},
			expected: "x|comment|||",
		},
		{
			name:     "unknown subject keeps ids",
			n:        Notification{Title: "x", Data: Data{Subject: UnknownSubject{Type: "comment", ProjectID: "p2"}}},
			expected: "x|comment||p2|",
		},
		{
			name:     "ids without type",
			n:        Notification{Title: "x", Data: Data{Subject: UnknownSubject{TaskID: "t1"}}},
			expected: "x||||t1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.n.DedupeKey())
		})
	}
}

func TestNotification_DedupeKeyIgnoresIDAndMessage(t *testing.T) {
	a := validNotification()
	b := validNotification()
	b.ID = "other"
	b.Message = "different body"
	b.Timestamp = b.Timestamp.Add(time.Hour)

	assert.Equal(t, a.DedupeKey(), b.DedupeKey())

	b.Data.Subject = TaskSubject{TaskID: "54321"}
	assert.NotEqual(t, a.DedupeKey(), b.DedupeKey())
}

func TestNotification_MessageTruncated(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		maxLen   int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"whitespace collapsed", "hello\n\n  world", 20, "hello world"},
		{"tiny limit", "hello", 2, "he"},
		{"zero", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{Message: tt.message}
			assert.Equal(t, tt.expected, n.MessageTruncated(tt.maxLen))
		})
	}
}

func TestNotification_Clone(t *testing.T) {
	n := validNotification()
	clone := n.Clone()
	clone.Title = "changed"
	clone.Data.Subject = ProjectSubject{ProjectID: "p"}

	assert.Equal(t, "New Task Assigned", n.Title)
	assert.Equal(t, TaskSubject{TaskID: "12345"}, n.Data.Subject)
}

func TestNotification_JSON(t *testing.T) {
	n := validNotification()
	data, err := json.Marshal(n)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"taskId":"12345"`)
	assert.Contains(t, string(data), `"type":"task"`)

	var decoded Notification
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, n.ID, decoded.ID)
	assert.Equal(t, n.Data, decoded.Data)
	assert.True(t, n.Timestamp.Equal(decoded.Timestamp))
}
