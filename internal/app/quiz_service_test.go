package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/infra/memory"
	"campus-portal-service/internal/quiz"
	"campus-portal-service/internal/securestore"
)

var epoch = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestOpenPersistsAndResumes(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService()

	engine, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer service.Close("quiz-1", "u1")
	if !engine.Running() {
		t.Fatalf("expected tick loop running")
	}

	engine.HandleAnswer("o2")
	engine.NavigateToQuestion(1)
	service.Flush("quiz-1", "u1")

	saved := securestore.Load(ctx, store, app.SessionKey("quiz-1", "u1"), domain.QuizState{}, nil)
	if saved.Answers[0] != "o2" || saved.CurrentIndex != 1 {
		t.Fatalf("expected persisted progress, got %+v", saved)
	}

	again, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil || again != engine {
		t.Fatalf("expected the live engine back, err=%v", err)
	}

	service.Close("quiz-1", "u1")
	if engine.Running() {
		t.Fatalf("close should stop the loop")
	}
	if _, err := service.Session("quiz-1", "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}

	resumed, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	state := resumed.State()
	if state.SessionKey != saved.SessionKey || state.Answers[0] != "o2" || state.CurrentIndex != 1 {
		t.Fatalf("expected resumed state, got %+v", state)
	}
}

func TestOpenSeparatesParticipants(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()
	defer service.Close("quiz-1", "u1")
	defer service.Close("quiz-1", "u2")

	a, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open u1: %v", err)
	}
	b, err := service.Open(ctx, "quiz-1", "u2")
	if err != nil {
		t.Fatalf("open u2: %v", err)
	}
	a.HandleAnswer("o1")
	if b.State().Answers[0] != "" {
		t.Fatalf("participants must not share state")
	}
	if got, _ := service.Session("quiz-1", "u1"); got != a {
		t.Fatalf("expected u1 engine")
	}
}

func TestOpenDiscardsIncompatibleState(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService()
	defer service.Close("quiz-1", "u1")

	bogus := domain.QuizState{Answers: []string{"o1"}, SessionKey: "old"}
	if err := store.Save(ctx, app.SessionKey("quiz-1", "u1"), bogus); err != nil {
		t.Fatalf("seed: %v", err)
	}
	engine, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	state := engine.State()
	if state.SessionKey == "old" || len(state.Answers) != 2 {
		t.Fatalf("expected fresh state, got %+v", state)
	}
}

func TestOpenUnknownQuiz(t *testing.T) {
	service, _, _ := newTestService()
	if _, err := service.Open(context.Background(), "missing", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestSessionTicksWithClock(t *testing.T) {
	ctx := context.Background()
	service, _, clk := newTestService()
	engine, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer service.Close("quiz-1", "u1")

	updates, cancel := engine.Subscribe()
	defer cancel()
	<-updates

	engine.ToggleTimer(true)
	<-updates
	clk.Advance(quiz.TickInterval)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.State.TimeLeft == 9 {
				return
			}
		case <-deadline:
			t.Fatalf("expected a tick to decrement the timer")
		}
	}
}

func newTestService() (*app.QuizService, *securestore.Store, *clock.Manual) {
	clk := clock.NewManual(epoch)
	quizzes := memory.NewQuizRepositoryWithClock(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute, clk)
	store := securestore.New(memory.NewKVStore(), securestore.WithClock(clk))
	service := app.NewQuizService(memory.NewSessionStore(), quizzes, store,
		app.WithQuizClock(clk),
		app.WithQuestionSeconds(10),
	)
	return service, store, clk
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4"},
				},
				CorrectAnswer: "o2",
			},
			{
				ID:   "q2",
				Text: "Capital of France?",
				Options: []domain.Option{
					{ID: "o1", Text: "Paris"},
					{ID: "o2", Text: "Lyon"},
				},
				CorrectAnswer: "o1",
			},
		},
	}
}

func TestReleaseKeepsWatchedSessions(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()
	engine, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, cancel := engine.Subscribe()

	service.Release("quiz-1", "u1")
	if _, err := service.Session("quiz-1", "u1"); err != nil {
		t.Fatalf("watched session must stay open: %v", err)
	}

	cancel()
	service.Release("quiz-1", "u1")
	if _, err := service.Session("quiz-1", "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected released session closed, got %v", err)
	}
}

type gatedBackend struct {
	securestore.Backend
	gate chan struct{}
}

func (b gatedBackend) Set(ctx context.Context, key, value string) error {
	<-b.gate
	return b.Backend.Set(ctx, key, value)
}

func TestTransitionsDoNotWaitOnStorage(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(epoch)
	backend := gatedBackend{Backend: memory.NewKVStore(), gate: make(chan struct{})}
	store := securestore.New(backend, securestore.WithClock(clk))
	quizzes := memory.NewQuizRepositoryWithClock(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute, clk)
	service := app.NewQuizService(memory.NewSessionStore(), quizzes, store, app.WithQuizClock(clk))

	engine, err := service.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	answered := make(chan struct{})
	go func() {
		engine.HandleAnswer("o2")
		engine.NavigateToQuestion(1)
		close(answered)
	}()
	select {
	case <-answered:
	case <-time.After(2 * time.Second):
		t.Fatalf("transitions blocked on a stalled storage write")
	}

	close(backend.gate)
	service.Close("quiz-1", "u1")
	saved := securestore.Load(ctx, store, app.SessionKey("quiz-1", "u1"), domain.QuizState{}, nil)
	if saved.Answers[0] != "o2" || saved.CurrentIndex != 1 {
		t.Fatalf("expected latest state saved after close, got %+v", saved)
	}
}

func TestAttachSurvivesConcurrentRelease(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	for i := 0; i < 50; i++ {
		if _, err := service.Open(ctx, "quiz-1", "u1"); err != nil {
			t.Fatalf("open: %v", err)
		}

		var (
			wg        sync.WaitGroup
			engine    *quiz.Engine
			cancel    func()
			attachErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			engine, _, cancel, attachErr = service.Attach(ctx, "quiz-1", "u1")
		}()
		go func() {
			defer wg.Done()
			service.Release("quiz-1", "u1")
		}()
		wg.Wait()
		if attachErr != nil {
			t.Fatalf("attach: %v", attachErr)
		}

		live, err := service.Session("quiz-1", "u1")
		if err != nil || live != engine || !engine.Running() {
			t.Fatalf("attached engine must stay registered and running (iteration %d, err=%v)", i, err)
		}
		cancel()
		service.Release("quiz-1", "u1")
		if _, err := service.Session("quiz-1", "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected session closed after last listener left, got %v", err)
		}
	}
}
