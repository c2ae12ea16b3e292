package memory

import (
	"sync"

	"campus-portal-service/internal/quiz"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*quiz.Engine
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*quiz.Engine),
	}
}

func (s *SessionStore) GetOrCreate(key string, create func() *quiz.Engine) *quiz.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if engine, ok := s.sessions[key]; ok {
		return engine
	}
	engine := create()
	s.sessions[key] = engine
	return engine
}

func (s *SessionStore) Get(key string) (*quiz.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	engine, ok := s.sessions[key]
	return engine, ok
}

func (s *SessionStore) Delete(key string) (*quiz.Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
	}
	return engine, ok
}

func (s *SessionStore) DeleteIf(key string, remove func(*quiz.Engine) bool) (*quiz.Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine, ok := s.sessions[key]
	if !ok || !remove(engine) {
		return nil, false
	}
	delete(s.sessions, key)
	return engine, true
}
