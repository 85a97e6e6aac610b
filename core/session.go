package core

import (
	"context"
	"sync"
	"time"
)

// Session is one conversation: its history, its AgentMemory and a FIFO turn
// lock. Turns acquire the lock in arrival order; readers use Snapshot.
type Session struct {
	ID      string
	Created time.Time

	mu      sync.RWMutex
	history History
	memory  *AgentMemory
	updated time.Time
	version int64
	ended   bool

	turns *turnLock
}

// NewSession creates an empty session in the idle order state.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:      id,
		Created: now,
		history: History{},
		memory:  NewAgentMemory(),
		updated: now,
		turns:   newTurnLock(),
	}
}

// RestoreSession rebuilds a session from a persisted snapshot.
func RestoreSession(snap *SessionSnapshot) *Session {
	s := NewSession(snap.ID)
	s.Created = snap.Created
	s.updated = snap.Updated
	s.version = snap.Version
	s.history = append(History{}, snap.History...)
	s.memory = snap.Memory.Clone()
	return s
}

// BeginTurn blocks until every earlier turn of this session finished and
// returns the function that ends the current one.
func (s *Session) BeginTurn() (end func()) {
	s.turns.acquire()
	var once sync.Once
	return func() { once.Do(s.turns.release) }
}

// End marks the session as torn down. Call it while holding the turn so
// that queued turns observe it once they are served.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// Ended reports whether End was called. A turn that acquired an ended
// session must not run on it.
func (s *Session) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// PendingTurns returns the number of turns running or queued.
func (s *Session) PendingTurns() int { return s.turns.pending() }

// History returns a copy of the conversation history.
func (s *Session) History() History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(History{}, s.history...)
}

// Memory returns a deep copy of the agent memory.
func (s *Session) Memory() *AgentMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory.Clone()
}

// Commit replaces history and memory with the result of a finished turn.
// The new history must extend the current one.
func (s *Session) Commit(h History, m *AgentMemory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(h) < len(s.history) {
		return
	}
	s.history = append(History{}, h...)
	s.memory = m.Clone()
	s.updated = time.Now()
	s.version++
}

// AppendHistory appends messages without touching memory. It is used when a
// turn fails after the user message was accepted.
func (s *Session) AppendHistory(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.history = s.history.Append(m)
	}
	s.updated = time.Now()
	s.version++
}

// Updated returns the time of the last committed change.
func (s *Session) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Snapshot returns a serializable copy of the session.
func (s *Session) Snapshot() *SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &SessionSnapshot{
		ID:      s.ID,
		History: append(History{}, s.history...),
		Memory:  s.memory.Clone(),
		Created: s.Created,
		Updated: s.updated,
		Version: s.version,
	}
}

// SessionSnapshot is the persisted form of a Session.
type SessionSnapshot struct {
	ID      string       `json:"id"`
	History History      `json:"history"`
	Memory  *AgentMemory `json:"memory"`
	Created time.Time    `json:"created"`
	Updated time.Time    `json:"updated"`
	Version int64        `json:"version"`
}

// SessionStore persists session snapshots between turns. Load returns
// ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Load(ctx context.Context, id string) (*SessionSnapshot, error)
	Save(ctx context.Context, snap *SessionSnapshot) error
	Delete(ctx context.Context, id string) error
}

// turnLock is a ticket lock: waiters are served strictly in arrival order.
type turnLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newTurnLock() *turnLock {
	l := &turnLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *turnLock) acquire() {
	l.mu.Lock()
	ticket := l.next
	l.next++
	for ticket != l.serving {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

func (l *turnLock) release() {
	l.mu.Lock()
	l.serving++
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *turnLock) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.next - l.serving)
}
