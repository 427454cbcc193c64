package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the notification category discriminator.
type Kind string

// Known notification categories.
const (
	KindProject Kind = "project"
	KindTask    Kind = "task"
	KindIssue   Kind = "issue"
	KindTest    Kind = "test"
)

// Subject is what a notification is about. Each variant carries only the
// correlation id relevant to its category.
type Subject interface {
	Kind() Kind
}

// ProjectSubject refers to a project.
type ProjectSubject struct {
	ProjectID string
}

// TaskSubject refers to a task.
type TaskSubject struct {
	TaskID string
}

// IssueSubject refers to an issue.
type IssueSubject struct {
	IssueID string
}

// TestSubject is sent by test pushes; it never routes anywhere.
type TestSubject struct{}

// UnknownSubject keeps an unrecognised or missing discriminator together
// with whatever correlation ids arrived with it. It never routes, but the
// ids still take part in deduplication.
type UnknownSubject struct {
	Type      string
	ProjectID string
	TaskID    string
	IssueID   string
}

func (ProjectSubject) Kind() Kind   { return KindProject }
func (TaskSubject) Kind() Kind      { return KindTask }
func (IssueSubject) Kind() Kind     { return KindIssue }
func (TestSubject) Kind() Kind      { return KindTest }
func (s UnknownSubject) Kind() Kind { return Kind(s.Type) }

// Priority levels.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// PriorityNames maps priorities to their wire names.
var PriorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
}

// String returns the wire name of the priority.
func (p Priority) String() string {
	if name, ok := PriorityNames[p]; ok {
		return name
	}
	return PriorityNames[PriorityNormal]
}

// ParsePriority parses a wire priority name. Unknown or empty values map to
// PriorityNormal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "high", "critical", "urgent":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Data is the semantic payload of a notification.
type Data struct {
	Subject  Subject
	Priority Priority
	Source   string
}

// Kind returns the category of the payload, or "" when no subject is set.
func (d Data) Kind() Kind {
	if d.Subject == nil {
		return ""
	}
	return d.Subject.Kind()
}

// correlation returns the project, task and issue ids carried by the subject.
func (d Data) correlation() (projectID, taskID, issueID string) {
	switch s := d.Subject.(type) {
	case ProjectSubject:
		return s.ProjectID, "", ""
	case TaskSubject:
		return "", s.TaskID, ""
	case IssueSubject:
		return "", "", s.IssueID
	case UnknownSubject:
		return s.ProjectID, s.TaskID, s.IssueID
	}
	return "", "", ""
}

// Payload keys used by transports and the JSON encoding.
const (
	KeyType      = "type"
	KeyProjectID = "projectId"
	KeyTaskID    = "taskId"
	KeyIssueID   = "issueId"
	KeyPriority  = "priority"
	KeySource    = "source"
)

// ParseData builds a Data from a flat key/value payload.
// A missing type yields a nil subject unless correlation ids are present; an
// unrecognised type, or ids without a type, yield an UnknownSubject.
func ParseData(fields map[string]string) Data {
	d := Data{
		Priority: ParsePriority(fields[KeyPriority]),
		Source:   fields[KeySource],
	}

	switch kind := Kind(strings.ToLower(strings.TrimSpace(fields[KeyType]))); kind {
	case "":
		if fields[KeyProjectID] != "" || fields[KeyTaskID] != "" || fields[KeyIssueID] != "" {
			d.Subject = unknownSubject("", fields)
		}
	case KindProject:
		d.Subject = ProjectSubject{ProjectID: fields[KeyProjectID]}
	case KindTask:
		d.Subject = TaskSubject{TaskID: fields[KeyTaskID]}
	case KindIssue:
		d.Subject = IssueSubject{IssueID: fields[KeyIssueID]}
	case KindTest:
		d.Subject = TestSubject{}
	default:
		d.Subject = unknownSubject(fields[KeyType], fields)
	}
	return d
}

func unknownSubject(kind string, fields map[string]string) UnknownSubject {
	return UnknownSubject{
		Type:      kind,
		ProjectID: fields[KeyProjectID],
		TaskID:    fields[KeyTaskID],
		IssueID:   fields[KeyIssueID],
	}
}

// Fields flattens the payload back into transport keys. Empty values are omitted.
func (d Data) Fields() map[string]string {
	fields := make(map[string]string)
	if kind := d.Kind(); kind != "" {
		fields[KeyType] = string(kind)
	}
	projectID, taskID, issueID := d.correlation()
	if projectID != "" {
		fields[KeyProjectID] = projectID
	}
	if taskID != "" {
		fields[KeyTaskID] = taskID
	}
	if issueID != "" {
		fields[KeyIssueID] = issueID
	}
	fields[KeyPriority] = d.Priority.String()
	if d.Source != "" {
		fields[KeySource] = d.Source
	}
	return fields
}

// MarshalJSON encodes the payload in its flat wire shape.
func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Fields())
}

// UnmarshalJSON decodes the flat wire shape.
func (d *Data) UnmarshalJSON(b []byte) error {
	var fields map[string]string
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	*d = ParseData(fields)
	return nil
}

// MarshalYAML encodes the payload in its flat wire shape.
func (d Data) MarshalYAML() (any, error) {
	return d.Fields(), nil
}
