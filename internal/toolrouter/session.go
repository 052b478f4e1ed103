package toolrouter

import (
	"sync"
	"time"
)

// handoffDepth bounds how many recent calls a session's handoff packet
// retains — enough to reconstruct "what was this session doing" without
// growing unbounded over a long-lived connection.
const handoffDepth = 20

// CallRecord is one entry in a session's handoff ring buffer.
type CallRecord struct {
	Tool string
	At   time.Time
}

// Session tracks one connected caller's counters and recent-call
// history, grounded on the teacher's InstanceInfo (internal/instance)
// generalized from "is the process already running" metadata to
// per-session call bookkeeping for resume-on-reconnect.
type Session struct {
	ID            string
	Caller        string
	CreatedAt     time.Time
	ToolCallCount int
	FilesTouched  map[string]bool
	recent        []CallRecord // ring buffer, oldest first, bounded to handoffDepth
}

// HandoffPacket is the serialized session state spec.md §4.L returns to
// support reconnect-resume without losing context.
type HandoffPacket struct {
	SessionID     string
	Caller        string
	ToolCallCount int
	FilesTouched  []string
	RecentCalls   []CallRecord
}

// SessionManager owns every active session's state.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager builds an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Open creates (or returns, if already present) a session for id.
func (m *SessionManager) Open(id, caller string, now time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, Caller: caller, CreatedAt: now, FilesTouched: make(map[string]bool)}
	m.sessions[id] = s
	return s
}

// RecordCall appends a tool call to a session's counters and handoff
// ring buffer, creating the session if it doesn't already exist.
func (m *SessionManager) RecordCall(sessionID, tool string, args map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &Session{ID: sessionID, CreatedAt: time.Now().UTC(), FilesTouched: make(map[string]bool)}
		m.sessions[sessionID] = s
	}

	s.ToolCallCount++
	if file, ok := args["file"].(string); ok && file != "" {
		s.FilesTouched[file] = true
	}

	s.recent = append(s.recent, CallRecord{Tool: tool, At: time.Now().UTC()})
	if len(s.recent) > handoffDepth {
		s.recent = s.recent[len(s.recent)-handoffDepth:]
	}
}

// Close removes a session, e.g. on explicit disconnect.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Handoff returns the serialized state of a session for reconnect.
func (m *SessionManager) Handoff(id string) (HandoffPacket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return HandoffPacket{}, false
	}

	files := make([]string, 0, len(s.FilesTouched))
	for f := range s.FilesTouched {
		files = append(files, f)
	}
	recent := make([]CallRecord, len(s.recent))
	copy(recent, s.recent)

	return HandoffPacket{
		SessionID:     s.ID,
		Caller:        s.Caller,
		ToolCallCount: s.ToolCallCount,
		FilesTouched:  files,
		RecentCalls:   recent,
	}, true
}
