package redis

import (
	"context"
	"sync"
	"time"

	"campus-portal-service/internal/quiz"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Engines stay in a local map since their tick loops run in this process;
// Redis only carries a liveness marker per open session.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*quiz.Engine
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(key), "1", s.ttl).Err()
	return engine
}

func (s *SessionStore) Get(key string) (*quiz.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	engine, ok := s.sessions[key]
	return engine, ok
}

func (s *SessionStore) Delete(key string) (*quiz.Engine, bool) {
	return s.DeleteIf(key, func(*quiz.Engine) bool { return true })
}

func (s *SessionStore) DeleteIf(key string, remove func(*quiz.Engine) bool) (*quiz.Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine, ok := s.sessions[key]
	if !ok || !remove(engine) {
		return nil, false
	}
	delete(s.sessions, key)
	_ = s.client.Del(context.Background(), s.key(key)).Err()
	return engine, true
}

func (s *SessionStore) key(sessionKey string) string {
	return "quiz:session:" + sessionKey
}
