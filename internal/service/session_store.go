package service

import (
	"sync"

	"github.com/cloo-solutions/askdoc/internal/domain"
)

// SessionStore keeps conversation sessions in memory
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	uuidGen  UUIDGenerator
}

// NewSessionStore creates an empty SessionStore
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithGenerator(&DefaultUUIDGenerator{})
}

func NewSessionStoreWithGenerator(uuidGen UUIDGenerator) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		uuidGen:  uuidGen,
	}
}

// Create starts a new, empty session
func (s *SessionStore) Create() *domain.Session {
	session := domain.NewSession(s.uuidGen.Generate())

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get returns the session with id, or domain.ErrSessionNotFound
func (s *SessionStore) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// GetOrCreate returns the session with id, creating it under that id if needed.
// An empty id always creates a fresh session.
func (s *SessionStore) GetOrCreate(id string) *domain.Session {
	if id == "" {
		return s.Create()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session
	}
	session := domain.NewSession(id)
	s.sessions[id] = session
	return session
}

// Delete forgets the session with id
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
