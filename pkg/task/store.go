package task

import (
	"sync"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

// DefaultCapacity bounds the task table.
const DefaultCapacity = 50

// Store is the bounded in-memory task table. Eviction is strictly by
// insertion order: when full, the earliest-inserted task goes,
// regardless of access or update since. State lives only as long as
// the process.
type Store struct {
	mu       sync.Mutex
	capacity int
	tasks    map[string]*a2a.Task
	order    []string
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		tasks:    make(map[string]*a2a.Task, capacity),
	}
}

// Put inserts or replaces a task. A replacement keeps the original
// insertion slot. Returns the ID of an evicted task, if any.
func (s *Store) Put(t *a2a.Task) (evicted string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		s.tasks[t.ID] = t
		return ""
	}
	if len(s.order) >= s.capacity {
		evicted = s.order[0]
		s.order = s.order[1:]
		delete(s.tasks, evicted)
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return evicted
}

// Get returns a copy so callers cannot mutate stored state without
// going back through the store.
func (s *Store) Get(id string) (a2a.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, false
	}
	return cloneTask(t), true
}

// Update applies fn to the stored task under the lock.
func (s *Store) Update(id string, fn func(*a2a.Task) error) (a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, ErrNotFound
	}
	if err := fn(t); err != nil {
		return cloneTask(t), err
	}
	return cloneTask(t), nil
}

// List returns tasks newest-inserted first.
func (s *Store) List() []a2a.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]a2a.Task, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if t, ok := s.tasks[s.order[i]]; ok {
			out = append(out, cloneTask(t))
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func cloneTask(t *a2a.Task) a2a.Task {
	out := *t
	if t.Artifacts != nil {
		out.Artifacts = append([]a2a.Artifact(nil), t.Artifacts...)
	}
	if t.History != nil {
		out.History = append([]a2a.Message(nil), t.History...)
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
