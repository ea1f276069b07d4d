package a2a

import (
	"encoding/json"
	"strings"
)

// Part is one piece of a message. Only text parts carry routable
// content; other kinds ride along opaquely.
type Part struct {
	Kind     string                 `json:"kind"`
	Text     string                 `json:"text,omitempty"`
	Data     json.RawMessage        `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Message is the A2A message shape used by message/send.
type Message struct {
	Role      string                 `json:"role,omitempty"`
	Parts     []Part                 `json:"parts"`
	MessageID string                 `json:"messageId,omitempty"`
	TaskID    string                 `json:"taskId,omitempty"`
	ContextID string                 `json:"contextId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// TextContent concatenates the text parts of a message.
func (m *Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == "text" && p.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// SkillID returns the explicit metadata.skillId hint, if any.
func (m *Message) SkillID() string {
	if m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata["skillId"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Task states. submitted is the only non-terminal state the synchronous
// engine produces; working is reserved for a future asynchronous path.
const (
	TaskSubmitted = "submitted"
	TaskWorking   = "working"
	TaskCompleted = "completed"
	TaskCanceled  = "canceled"
	TaskFailed    = "failed"
	TaskRejected  = "rejected"
)

type TaskStatus struct {
	State     string   `json:"state"`
	Message   *Message `json:"message,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// Task is one tracked unit of work.
type Task struct {
	ID        string                 `json:"id"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	Artifacts []Artifact             `json:"artifacts,omitempty"`
	History   []Message              `json:"history,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Kind      string                 `json:"kind"`
}

// SendParams is the params shape for message/send.
type SendParams struct {
	Message Message `json:"message"`
}

// QueryParams is the params shape for tasks/get and tasks/cancel.
// HistoryLength is a pointer so "0" (suppress history) is
// distinguishable from "absent".
type QueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}
