// Package memory keeps short-lived conversation history in process so
// follow-up questions can be resolved against earlier exchanges.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
	Route    string
	At       time.Time
}

type session struct {
	mu          sync.Mutex
	turns       []Turn
	lastTouched time.Time
}

// Store holds sessions keyed by ID. The sessions map has its own RWMutex;
// each session carries its own lock so appends on one session never block
// reads or appends on another.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	ttl      time.Duration
	maxTurns int

	now func() time.Time
}

// NewStore creates a Store. Sessions not touched within ttl are treated as
// gone; maxTurns bounds how much history is handed back for prompts.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	return &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// live returns the session if it exists and has not expired. Callers hold at
// least a read lock on s.mu.
func (s *Store) live(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.mu.Lock()
	expired := s.now().Sub(sess.lastTouched) > s.ttl
	sess.mu.Unlock()
	if expired {
		return nil
	}
	return sess
}

// GetOrCreate resolves a session ID. An empty, unknown, or expired ID yields
// a brand-new session with a fresh ID; created reports which case happened.
func (s *Store) GetOrCreate(id string) (string, bool) {
	if id != "" {
		s.mu.RLock()
		sess := s.live(id)
		s.mu.RUnlock()
		if sess != nil {
			sess.mu.Lock()
			sess.lastTouched = s.now()
			sess.mu.Unlock()
			return id, false
		}
	}

	newID := uuid.NewString()
	s.mu.Lock()
	s.sessions[newID] = &session{lastTouched: s.now()}
	s.mu.Unlock()
	return newID, true
}

// Append records a completed exchange. Appends on the same session are
// serialized by the session lock; unknown IDs are dropped silently since the
// session may have been evicted mid-request.
func (s *Store) Append(id string, turn Turn) {
	s.mu.RLock()
	sess := s.sessions[id]
	s.mu.RUnlock()
	if sess == nil {
		return
	}

	if turn.At.IsZero() {
		turn.At = s.now()
	}

	sess.mu.Lock()
	sess.turns = append(sess.turns, turn)
	sess.lastTouched = s.now()
	sess.mu.Unlock()
}

// History returns the most recent turns, oldest first, capped at the store's
// turn bound. Reading refreshes the session's TTL.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	sess := s.live(id)
	s.mu.RUnlock()
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastTouched = s.now()

	n := len(sess.turns)
	if n > s.maxTurns {
		n = s.maxTurns
	}
	out := make([]Turn, n)
	copy(out, sess.turns[len(sess.turns)-n:])
	return out
}

// EvictExpired removes sessions past their TTL and returns how many went.
func (s *Store) EvictExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := now.Sub(sess.lastTouched) > s.ttl
		sess.mu.Unlock()
		if expired {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live and not-yet-evicted sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
