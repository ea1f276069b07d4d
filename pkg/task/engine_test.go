package task

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

func sendText(e *Engine, text string) (a2a.Task, error) {
	return e.Send(a2a.SendParams{Message: a2a.Message{
		Role:  "user",
		Parts: []a2a.Part{{Kind: "text", Text: text}},
	}}, map[string]interface{}{"tier": "STANDARD"})
}

func TestSendCompletesTask(t *testing.T) {
	e := NewEngine(50)
	got, err := sendText(e, "check domain reputation for example.org")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Status.State != a2a.TaskCompleted {
		t.Fatalf("state = %q", got.Status.State)
	}
	if got.ID == "" || got.ContextID == "" {
		t.Fatalf("missing identifiers: %+v", got)
	}
	if len(got.Artifacts) != 1 {
		t.Fatalf("expected one artifact, got %d", len(got.Artifacts))
	}
	if got.Metadata["skill"] != SkillIOCLookup {
		t.Fatalf("skill metadata = %v", got.Metadata["skill"])
	}
	if got.Metadata["tier"] != "STANDARD" {
		t.Fatal("admission metadata must be embedded")
	}
	if len(got.History) != 2 {
		t.Fatalf("history should hold request and result, got %d", len(got.History))
	}
}

func TestSendValidation(t *testing.T) {
	e := NewEngine(50)
	if _, err := e.Send(a2a.SendParams{Message: a2a.Message{}}, nil); err == nil {
		t.Fatal("empty parts must be rejected")
	}
	if _, err := e.Send(a2a.SendParams{Message: a2a.Message{
		Role:  "assistant",
		Parts: []a2a.Part{{Kind: "text", Text: "x"}},
	}}, nil); err == nil {
		t.Fatal("non-user role must be rejected")
	}
	if _, err := e.Send(a2a.SendParams{Message: a2a.Message{
		Parts: []a2a.Part{{Kind: "data"}},
	}}, nil); err == nil {
		t.Fatal("no textual content must be rejected")
	}
}

func TestSendContinuesExistingTask(t *testing.T) {
	e := NewEngine(50)
	first, err := sendText(e, "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	second, err := e.Send(a2a.SendParams{Message: a2a.Message{
		Parts:  []a2a.Part{{Kind: "text", Text: "follow up"}},
		TaskID: first.ID,
	}}, nil)
	if err != nil {
		t.Fatalf("Send continue: %v", err)
	}
	if second.ID != first.ID || second.ContextID != first.ContextID {
		t.Fatalf("continuation should keep ids: %+v vs %+v", first, second)
	}
	if len(second.History) != 4 {
		t.Fatalf("continued history length = %d", len(second.History))
	}
}

func TestSendEvictsOldest(t *testing.T) {
	e := NewEngine(50)
	var firstID string
	for i := 0; i < 51; i++ {
		got, err := sendText(e, fmt.Sprintf("message number %d", i))
		if err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
		if i == 0 {
			firstID = got.ID
		}
	}
	if e.Store.Len() != 50 {
		t.Fatalf("store len = %d", e.Store.Len())
	}
	if _, err := e.Get(firstID, nil); !errors.Is(err, ErrNotFound) {
		t.Fatal("earliest task should have been evicted")
	}
}

func TestGetHistorySuppression(t *testing.T) {
	e := NewEngine(50)
	sent, _ := sendText(e, "hello")

	zero := 0
	got, err := e.Get(sent.ID, &zero)
	if err != nil || got.History != nil {
		t.Fatalf("historyLength=0 should suppress history: %+v %v", got.History, err)
	}

	one := 1
	got, _ = e.Get(sent.ID, &one)
	if len(got.History) != 1 || got.History[0].Role != "agent" {
		t.Fatalf("historyLength=1 should keep the newest entry: %+v", got.History)
	}

	got, _ = e.Get(sent.ID, nil)
	if len(got.History) != 2 {
		t.Fatalf("absent historyLength keeps full history: %d", len(got.History))
	}

	if _, err := e.Get("missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelLifecycle(t *testing.T) {
	e := NewEngine(50)
	e.Store.Put(&a2a.Task{ID: "open", Status: a2a.TaskStatus{State: a2a.TaskSubmitted}})

	got, err := e.Cancel("open")
	if err != nil || got.Status.State != a2a.TaskCanceled {
		t.Fatalf("cancel failed: %+v %v", got, err)
	}
	if got.Status.Timestamp == "" {
		t.Fatal("cancel must stamp a timestamp")
	}

	if _, err := e.Cancel("open"); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("second cancel must reject, got %v", err)
	}
	for _, state := range []string{a2a.TaskCompleted, a2a.TaskFailed, a2a.TaskRejected} {
		id := "t-" + state
		e.Store.Put(&a2a.Task{ID: id, Status: a2a.TaskStatus{State: state}})
		if _, err := e.Cancel(id); !errors.Is(err, ErrNotCancelable) {
			t.Fatalf("cancel of %s task must reject, got %v", state, err)
		}
	}
	if _, err := e.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSynthesizedResultNamesSkill(t *testing.T) {
	e := NewEngine(50)
	got, _ := sendText(e, "what sanctions apply in the region?")
	text := got.Status.Message.Parts[0].Text
	if !strings.Contains(text, SkillGeoRisk) {
		t.Fatalf("result should name the skill: %q", text)
	}
}
