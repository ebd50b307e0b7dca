// Package evolution implements each agent's versioned Memory, TaskList,
// and Lessons stores, persisted through a pluggable storage.Adapter.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/terraphim-labs/roleforge/pkg/storage"
)

// MemoryItem is one keyed, timestamped observation.
type MemoryItem struct {
	Key       string
	Value     string
	Timestamp time.Time
	Relevance float64 // in [0,1]; used by agentcore's top-3 memory selection
}

// TaskStatus is a TaskList entry's state.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskInProgress
	TaskDone
	TaskAbandoned
)

// TaskPriority orders TaskList entries (Low < Medium < High < Critical).
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// TaskEntry is one item in an agent's evolving task list.
type TaskEntry struct {
	ID       string
	Text     string
	Status   TaskStatus
	Priority TaskPriority
}

// Lesson is a deduplicated (context, quality, extracted lesson) tuple;
// only extracted when the originating command's quality score met the
// configured threshold.
type Lesson struct {
	Context string
	Quality float64
	Text    string
}

// State is the full versioned evolution record for one agent.
type State struct {
	Version   int
	Memory    []MemoryItem
	Tasks     []TaskEntry
	Lessons   []Lesson
}

// Store owns one agent's State and its persistence lifecycle against a
// storage.Adapter. Each agent runs one command at a time (enforced by
// the Busy status gate in pkg/agentcore), so Store itself does no
// internal locking.
type Store struct {
	agentID string
	adapter storage.Adapter
	state   State
}

// NewStore returns a Store with an empty State; call Load to populate
// it from the adapter, tolerating the "no record" case.
func NewStore(agentID string, adapter storage.Adapter) *Store {
	return &Store{agentID: agentID, adapter: adapter, state: State{Version: 1}}
}

func (s *Store) key() string {
	return fmt.Sprintf("agent_state:%s", s.agentID)
}

// Load reads and deserializes the agent's state. A missing record
// (storage.ErrNotFound) is not an error: the Store keeps its freshly
// initialized empty State, matching "initialize() must tolerate the
// no-record case."
func (s *Store) Load(ctx context.Context) error {
	data, err := s.adapter.Read(ctx, s.key())
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("evolution: load %s: %w", s.agentID, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("evolution: decode state for %s: %w", s.agentID, err)
	}
	s.state = st
	return nil
}

// Save explicitly serializes and persists the current state. When the
// stored record already holds exactly this state (e.g. right after Load
// with no changes since), Save leaves it untouched, so save -> load ->
// save yields identical bytes; otherwise it increments the version
// before writing.
func (s *Store) Save(ctx context.Context) error {
	current, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("evolution: encode state for %s: %w", s.agentID, err)
	}
	if stored, err := s.adapter.Read(ctx, s.key()); err == nil && string(stored) == string(current) {
		return nil
	}
	s.state.Version++
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("evolution: encode state for %s: %w", s.agentID, err)
	}
	if err := s.adapter.Write(ctx, s.key(), data); err != nil {
		return fmt.Errorf("evolution: save %s: %w", s.agentID, err)
	}
	return nil
}

// Snapshot returns a copy of the current in-memory state.
func (s *Store) Snapshot() State {
	return s.state
}

// AddMemory appends or updates a keyed memory observation.
func (s *Store) AddMemory(item MemoryItem) {
	for i, existing := range s.state.Memory {
		if existing.Key == item.Key {
			s.state.Memory[i] = item
			return
		}
	}
	s.state.Memory = append(s.state.Memory, item)
}

// TopMemories returns up to n memory items with Relevance >= minRelevance,
// sorted by relevance descending — the selection agentcore uses to
// append "up to 3 most-relevant memory items (relevance >= 0.5)".
func (s *Store) TopMemories(n int, minRelevance float64) []MemoryItem {
	var candidates []MemoryItem
	for _, m := range s.state.Memory {
		if m.Relevance >= minRelevance {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Relevance > candidates[j].Relevance })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// AddTask appends a task to the task list.
func (s *Store) AddTask(task TaskEntry) {
	s.state.Tasks = append(s.state.Tasks, task)
}

// UpdateTaskStatus transitions a task's status by id.
func (s *Store) UpdateTaskStatus(id string, status TaskStatus) {
	for i, t := range s.state.Tasks {
		if t.ID == id {
			s.state.Tasks[i].Status = status
			return
		}
	}
}

// RemoveTask deletes a task by id.
func (s *Store) RemoveTask(id string) {
	out := s.state.Tasks[:0]
	for _, t := range s.state.Tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.state.Tasks = out
}

// AddLesson deduplicates on (context, text) before appending; quality
// gating happens at the caller.
func (s *Store) AddLesson(lesson Lesson) {
	for _, existing := range s.state.Lessons {
		if existing.Context == lesson.Context && existing.Text == lesson.Text {
			return
		}
	}
	s.state.Lessons = append(s.state.Lessons, lesson)
}
