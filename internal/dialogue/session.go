package dialogue

import (
	"sync"
	"time"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// Session is one conversation's mutable state. Fields are guarded by mu,
// which is held for the whole of a turn.
type Session struct {
	mu sync.Mutex

	id              string
	step            int
	clarifyAttempts int
	lead            *Lead
	history         *History
	terminated      bool
	summary         *domain.LeadSummary

	lastActive time.Time
	evicted    bool
}

func newSession(id string) *Session {
	return &Session{id: id, lead: NewLead(), history: NewHistory(MaxHistory)}
}

func (s *Session) reset() {
	s.step = StepGreeting
	s.clarifyAttempts = 0
	s.lead.Reset()
	s.history.Reset()
	s.terminated = false
	s.summary = nil
}

// SessionStore maps session keys to sessions. The map lock is only held for
// lookups; a session's own lock serializes its turns.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), now: time.Now}
}

// Acquire returns the session for id, creating it if needed, with its lock held.
// Callers must call Release.
func (st *SessionStore) Acquire(id string) *Session {
	for {
		st.mu.Lock()
		s, ok := st.sessions[id]
		if !ok {
			s = newSession(id)
			st.sessions[id] = s
		}
		st.mu.Unlock()

		s.mu.Lock()
		if s.evicted {
			// Swept between lookup and lock; start over with a fresh session.
			s.mu.Unlock()
			continue
		}
		s.lastActive = st.now()
		return s
	}
}

// Release unlocks a session obtained from Acquire.
func (st *SessionStore) Release(s *Session) {
	s.mu.Unlock()
}

// Sweep evicts sessions idle for longer than ttl. Sessions with a turn in
// flight are skipped. It returns the number evicted.
func (st *SessionStore) Sweep(ttl time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-ttl)
	evicted := 0
	for id, s := range st.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastActive.Before(cutoff) {
			s.evicted = true
			delete(st.sessions, id)
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
