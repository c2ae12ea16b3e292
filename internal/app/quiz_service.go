package app

import (
	"context"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/quiz"
	"campus-portal-service/internal/securestore"
)

// SessionRepository keeps the live quiz engines (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(key string, create func() *quiz.Engine) *quiz.Engine
	Get(key string) (*quiz.Engine, bool)
	Delete(key string) (*quiz.Engine, bool)
	// DeleteIf removes the engine under key when remove reports true,
	// checking and removing under one lock.
	DeleteIf(key string, remove func(*quiz.Engine) bool) (*quiz.Engine, bool)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizService runs one engine per (quiz, participant) and persists every
// transition through the secure store so a reconnect resumes the session.
type QuizService struct {
	sessions        SessionRepository
	quizzes         QuizRepository
	store           *securestore.Store
	saver           *persister
	clock           clock.Clock
	questionSeconds int
}

type QuizServiceOption func(*QuizService)

func WithQuizClock(c clock.Clock) QuizServiceOption {
	return func(s *QuizService) { s.clock = c }
}

func WithQuestionSeconds(n int) QuizServiceOption {
	return func(s *QuizService) { s.questionSeconds = n }
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, store *securestore.Store, opts ...QuizServiceOption) *QuizService {
	s := &QuizService{
		sessions:        sessions,
		quizzes:         quizzes,
		store:           store,
		clock:           clock.Real{},
		questionSeconds: domain.DefaultQuestionSeconds,
		saver:           newPersister(store, 2*time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionKey is the storage and registry key of a participant's session.
func SessionKey(quizID, userID string) string {
	return "quiz:" + quizID + ":" + userID
}

// Open returns the participant's running engine, restoring persisted state
// when it is still valid for the quiz.
func (s *QuizService) Open(ctx context.Context, quizID, userID string) (*quiz.Engine, error) {
	key := SessionKey(quizID, userID)
	if engine, ok := s.sessions.Get(key); ok {
		return engine, nil
	}

	content, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}

	engine, err := quiz.New(content,
		quiz.WithClock(s.clock),
		quiz.WithQuestionSeconds(s.questionSeconds),
		quiz.OnChange(func(state domain.QuizState) { s.saver.offer(key, state) }),
	)
	if err != nil {
		return nil, err
	}

	s.saver.flush(key)
	saved := securestore.Load(ctx, s.store, key, domain.QuizState{}, quiz.ValidateState(len(content.Questions)))
	restored := saved.SessionKey != "" && engine.Restore(saved)

	// started under the registry lock so a released engine is never restarted
	live := s.sessions.GetOrCreate(key, func() *quiz.Engine {
		engine.Start(context.Background())
		return engine
	})
	if live == engine && !restored {
		s.saver.offer(key, engine.State())
	}
	return live, nil
}

// Attach opens the participant's session and subscribes to it. The returned
// engine is still registered after the subscription is in place, so a
// concurrent Release cannot stop it underneath the caller.
func (s *QuizService) Attach(ctx context.Context, quizID, userID string) (*quiz.Engine, <-chan quiz.Snapshot, func(), error) {
	key := SessionKey(quizID, userID)
	for {
		engine, err := s.Open(ctx, quizID, userID)
		if err != nil {
			return nil, nil, nil, err
		}
		updates, cancel := engine.Subscribe()
		if current, ok := s.sessions.Get(key); ok && current == engine {
			return engine, updates, cancel, nil
		}
		cancel()
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
	}
}

// Session returns an already open engine.
func (s *QuizService) Session(quizID, userID string) (*quiz.Engine, error) {
	engine, ok := s.sessions.Get(SessionKey(quizID, userID))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return engine, nil
}

// Close stops the participant's tick loop and forgets the live engine.
// The persisted state is kept for the next Open.
func (s *QuizService) Close(quizID, userID string) {
	key := SessionKey(quizID, userID)
	if engine, ok := s.sessions.Delete(key); ok {
		s.stop(key, engine)
	}
}

// Release closes the session once its last listener has gone.
func (s *QuizService) Release(quizID, userID string) {
	key := SessionKey(quizID, userID)
	idle := func(e *quiz.Engine) bool { return e.Subscribers() == 0 }
	if engine, ok := s.sessions.DeleteIf(key, idle); ok {
		s.stop(key, engine)
	}
}

// Flush waits until every state of the participant's session is saved.
func (s *QuizService) Flush(quizID, userID string) {
	s.saver.flush(SessionKey(quizID, userID))
}

// Shutdown waits for all pending session saves.
func (s *QuizService) Shutdown() {
	s.saver.flushAll()
}

func (s *QuizService) stop(key string, engine *quiz.Engine) {
	engine.Stop()
	s.saver.flush(key)
}
