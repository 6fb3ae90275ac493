package domain

import (
	"sync"
	"time"
)

// Session owns one conversation log. The log is append-only; Reset is the
// only way to remove turns.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.RWMutex
	turns []ChatTurn
}

// NewSession creates an empty session
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
	}
}

// Append adds turns to the end of the log
func (s *Session) Append(turns ...ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}

// History returns a copy of the full log in interaction order
func (s *Session) History() []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Recent returns a copy of the last n turns (fewer if the log is shorter).
func (s *Session) Recent(n int) []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return []ChatTurn{}
	}
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]ChatTurn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// Len returns the number of turns in the log
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Reset clears the log
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}
