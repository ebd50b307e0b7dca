package workflow

import "sync"

// SessionStatus is a WorkflowSession's lifecycle state.
type SessionStatus int

const (
	SessionPending SessionStatus = iota
	SessionRunning
	SessionCompleted
	SessionFailed
	SessionCancelled
)

func (s SessionStatus) terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// Session tracks one execution of a workflow pattern: id, pattern tag,
// status, monotonic progress, an ordered event log, and a terminal
// result or error.
type Session struct {
	mu       sync.Mutex
	ID       string
	Pattern  string
	status   SessionStatus
	progress float64
	events   []Event
	result   *WorkflowOutput
	err      error
	broker   *Broker
}

// NewSession starts a session in Pending state.
func NewSession(id, pattern string, broker *Broker) *Session {
	if broker == nil {
		broker = NewBroker()
	}
	return &Session{ID: id, Pattern: pattern, status: SessionPending, broker: broker}
}

// Broker returns the session's event broker, for subscribing.
func (s *Session) Broker() *Broker { return s.broker }

// Start transitions Pending -> Running.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = SessionRunning
	s.appendLocked(Event{SessionID: s.ID, Kind: EventSessionCreated})
}

// SetProgress advances progress monotonically; values that would
// decrease it are ignored.
func (s *Session) SetProgress(p float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p > s.progress {
		s.progress = p
		s.appendLocked(Event{SessionID: s.ID, Kind: EventProgressUpdate, Payload: p})
	}
}

// Complete reaches the terminal Completed state exactly once.
func (s *Session) Complete(result WorkflowOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.terminal() {
		return
	}
	s.status = SessionCompleted
	s.progress = 1
	s.result = &result
	s.appendLocked(Event{SessionID: s.ID, Kind: EventSessionCompleted, Payload: result})
}

// Fail reaches the terminal Failed state exactly once.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.terminal() {
		return
	}
	s.status = SessionFailed
	s.err = err
	s.appendLocked(Event{SessionID: s.ID, Kind: EventSessionFailed, Payload: err.Error()})
}

// Cancel reaches the terminal Cancelled state exactly once.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.terminal() {
		return
	}
	s.status = SessionCancelled
	s.appendLocked(Event{SessionID: s.ID, Kind: EventSessionCancelled})
}

func (s *Session) appendLocked(e Event) {
	s.events = append(s.events, e)
	s.broker.Publish(e)
}

// Status, Progress, Events, and Result/Err are read-only snapshots.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Session) Result() (WorkflowOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return WorkflowOutput{}, false
	}
	return *s.result, true
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
