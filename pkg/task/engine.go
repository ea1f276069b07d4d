package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

// Engine executes the JSON-RPC task operations against one bounded
// store. All processing is synchronous: a sent message completes (or
// is rejected) within the request that carried it.
type Engine struct {
	Store *Store
}

func NewEngine(capacity int) *Engine {
	return &Engine{Store: NewStore(capacity)}
}

// Send handles message/send. meta is embedded verbatim in the task's
// metadata so downstream audit consumers see the admission context
// (tier, country, score).
func (e *Engine) Send(params a2a.SendParams, meta map[string]interface{}) (a2a.Task, error) {
	msg := params.Message
	if len(msg.Parts) == 0 {
		return a2a.Task{}, fmt.Errorf("message must contain at least one part")
	}
	if msg.Role != "" && msg.Role != "user" {
		return a2a.Task{}, fmt.Errorf("message role must be \"user\"")
	}
	text := msg.TextContent()
	if strings.TrimSpace(text) == "" {
		return a2a.Task{}, fmt.Errorf("message has no textual content")
	}

	skill := RouteSkill(msg.SkillID(), text)
	now := time.Now().UTC()

	taskID := strings.TrimSpace(msg.TaskID)
	contextID := strings.TrimSpace(msg.ContextID)
	var history []a2a.Message
	if taskID != "" {
		if prev, ok := e.Store.Get(taskID); ok {
			history = prev.History
			if contextID == "" {
				contextID = prev.ContextID
			}
		}
	} else {
		taskID = uuid.New().String()
	}
	if contextID == "" {
		contextID = uuid.New().String()
	}

	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}
	msg.TaskID = taskID
	msg.ContextID = contextID
	history = append(history, msg)

	result := synthesizeResult(skill, text, taskID, contextID)
	history = append(history, result)

	t := &a2a.Task{
		ID:        taskID,
		ContextID: contextID,
		Kind:      "task",
		Status: a2a.TaskStatus{
			State:     a2a.TaskCompleted,
			Message:   &result,
			Timestamp: now.Format(time.RFC3339Nano),
		},
		Artifacts: []a2a.Artifact{{
			ArtifactID: uuid.New().String(),
			Name:       skill + "-result",
			Parts:      result.Parts,
		}},
		History:  history,
		Metadata: meta,
	}
	if t.Metadata == nil {
		t.Metadata = map[string]interface{}{}
	}
	t.Metadata["skill"] = skill
	e.Store.Put(t)
	return e.mustGet(taskID), nil
}

// Get handles tasks/get. historyLength 0 suppresses history entirely;
// a positive value keeps only the most recent entries.
func (e *Engine) Get(id string, historyLength *int) (a2a.Task, error) {
	t, ok := e.Store.Get(id)
	if !ok {
		return a2a.Task{}, ErrNotFound
	}
	if historyLength != nil {
		n := *historyLength
		switch {
		case n <= 0:
			t.History = nil
		case n < len(t.History):
			t.History = t.History[len(t.History)-n:]
		}
	}
	return t, nil
}

// Cancel handles tasks/cancel. Terminal tasks reject explicitly; a
// non-terminal task transitions to canceled exactly once.
func (e *Engine) Cancel(id string) (a2a.Task, error) {
	return e.Store.Update(id, func(t *a2a.Task) error {
		if IsTerminal(t.Status.State) {
			return ErrNotCancelable
		}
		if !CanTransition(t.Status.State, a2a.TaskCanceled) {
			return ErrInvalidTransition
		}
		t.Status.State = a2a.TaskCanceled
		t.Status.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
		return nil
	})
}

func (e *Engine) mustGet(id string) a2a.Task {
	t, _ := e.Store.Get(id)
	return t
}

func synthesizeResult(skill, text, taskID, contextID string) a2a.Message {
	var summary string
	switch skill {
	case SkillIOCLookup:
		summary = "Indicator lookup queued against the reputation feeds; matches will be reported per indicator."
	case SkillThreatAnalysis:
		summary = "Threat analysis mapped the request against known adversary techniques."
	case SkillVulnerabilityIntel:
		summary = "Vulnerability intelligence compiled from the current advisory set."
	case SkillGeoRisk:
		summary = "Geopolitical risk assessment generated from the instability index."
	default:
		summary = "Anomaly detection reviewed the submitted content; no specialized handler claimed it."
	}
	excerpt := text
	if len(excerpt) > 140 {
		excerpt = excerpt[:140] + "..."
	}
	return a2a.Message{
		Role:      "agent",
		MessageID: uuid.New().String(),
		TaskID:    taskID,
		ContextID: contextID,
		Parts: []a2a.Part{{
			Kind: "text",
			Text: fmt.Sprintf("[%s] %s Input: %q", skill, summary, excerpt),
		}},
	}
}
