package input

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notiq/internal/model"
)

func TestStdinAdapter_Array(t *testing.T) {
	in := `[
  {"title": "Review requested", "message": "PR #12", "data": {"type": "task", "taskId": "t-1", "priority": "high"}},
  {"title": "  ", "data": {}}
]`
	ns, err := NewStdinAdapterWithReader(strings.NewReader(in)).Import(context.Background())
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "Review requested", ns[0].Title)
	assert.Equal(t, model.TaskSubject{TaskID: "t-1"}, ns[0].Data.Subject)
	assert.Equal(t, model.PriorityHigh, ns[0].Data.Priority)
	assert.Empty(t, ns[1].Title, "untitled entries are kept")
}

func TestStdinAdapter_Lines(t *testing.T) {
	in := "\n{\"title\": \"one\", \"data\": {\"type\": \"issue\", \"issueId\": \"i-1\"}}\n{\"title\": \"two\", \"data\": {}}\n"
	ns, err := NewStdinAdapterWithReader(strings.NewReader(in)).Import(context.Background())
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, model.IssueSubject{IssueID: "i-1"}, ns[0].Data.Subject)
	assert.Nil(t, ns[1].Data.Subject)
}

func TestStdinAdapter_Empty(t *testing.T) {
	ns, err := NewStdinAdapterWithReader(strings.NewReader("  \n")).Import(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestStdinAdapter_Malformed(t *testing.T) {
	_, err := NewStdinAdapterWithReader(strings.NewReader(`{"title": `)).Import(context.Background())
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "stdin", adapterErr.Source)

	_, err = NewStdinAdapterWithReader(strings.NewReader(`{"title": "x", "data": "nope"}`)).Import(context.Background())
	assert.ErrorIs(t, err, model.ErrInvalidPayload)
}
