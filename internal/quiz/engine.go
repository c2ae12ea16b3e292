// Package quiz implements the per-participant quiz state machine.
//
// All transitions, user driven or tick driven, run under one mutex, so a tick
// and an answer never interleave inside a single update.
package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"github.com/google/uuid"
)

// TickInterval is the cadence of the session timer.
const TickInterval = time.Second

// Snapshot is the view pushed to subscribers after every transition.
type Snapshot struct {
	State domain.QuizState `json:"state"`
	Stats domain.QuizStats `json:"stats"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithKeyFunc overrides session key generation.
func WithKeyFunc(f func() string) Option {
	return func(e *Engine) { e.newKey = f }
}

// WithQuestionSeconds sets the timer-mode countdown per question.
func WithQuestionSeconds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.questionSeconds = n
		}
	}
}

// OnChange registers a hook invoked, in transition order, with every new state.
// The hook runs while the engine is locked and must not call back into it.
func OnChange(f func(domain.QuizState)) Option {
	return func(e *Engine) { e.onChange = f }
}

// Engine owns one QuizState and the timer that drives it.
type Engine struct {
	quiz            domain.Quiz
	clock           clock.Clock
	newKey          func() string
	questionSeconds int
	onChange        func(domain.QuizState)

	mu          sync.Mutex
	state       domain.QuizState
	lastTick    time.Time
	subscribers map[chan Snapshot]struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

// New builds an engine with a freshly initialized state.
func New(quiz domain.Quiz, opts ...Option) (*Engine, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		quiz:            quiz,
		clock:           clock.Real{},
		newKey:          func() string { return uuid.NewString() },
		questionSeconds: domain.DefaultQuestionSeconds,
		subscribers:     make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	now := e.clock.Now()
	e.state = e.initialState(now)
	e.lastTick = now
	return e, nil
}

// Restore replaces the state with a previously persisted one.
// It returns false and keeps the current state when the candidate is invalid.
func (e *Engine) Restore(state domain.QuizState) bool {
	if err := ValidateState(len(e.quiz.Questions))(state); err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state.Clone()
	e.lastTick = e.clock.Now()
	return true
}

// ValidateState returns a check that a persisted state fits a quiz of n questions.
func ValidateState(n int) func(domain.QuizState) error {
	return func(s domain.QuizState) error {
		switch {
		case len(s.Answers) != n:
			return fmt.Errorf("answers length %d, want %d", len(s.Answers), n)
		case s.CurrentIndex < 0 || s.CurrentIndex >= n:
			return fmt.Errorf("current index %d out of range", s.CurrentIndex)
		case s.SessionKey == "":
			return fmt.Errorf("missing session key")
		case s.TimeLeft < 0 || s.TimeElapsed < 0 || s.Streak < 0:
			return fmt.Errorf("negative counters")
		case s.IsPaused && !s.IsTimerMode:
			return fmt.Errorf("paused outside timer mode")
		}
		return nil
	}
}

func (e *Engine) initialState(now time.Time) domain.QuizState {
	return domain.QuizState{
		CurrentIndex: 0,
		Answers:      make([]string, len(e.quiz.Questions)),
		TimeLeft:     e.questionSeconds,
		SessionKey:   e.newKey(),
		StartTime:    now,
	}
}

// Quiz returns the immutable quiz the engine runs.
func (e *Engine) Quiz() domain.Quiz { return e.quiz }

// State returns a copy of the current state.
func (e *Engine) State() domain.QuizState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Snapshot returns the current state with derived stats.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// HandleAnswer records optionID for the current question. In timer mode it
// also advances, completing the quiz after the last question.
func (e *Engine) HandleAnswer(optionID string) {
	e.update(func(now time.Time) bool {
		s := &e.state
		if s.IsCompleted || s.IsPaused {
			return false
		}
		question := e.quiz.Questions[s.CurrentIndex]
		if !question.HasOption(optionID) {
			return false
		}
		s.Answers[s.CurrentIndex] = optionID
		if optionID == question.CorrectAnswer {
			s.Streak++
		} else {
			s.Streak = 0
		}
		if s.IsTimerMode {
			e.advanceLocked(now)
		}
		return true
	})
}

// NavigateToQuestion jumps to index in free-navigation mode.
func (e *Engine) NavigateToQuestion(index int) {
	e.update(func(time.Time) bool {
		s := &e.state
		if index < 0 || index >= len(e.quiz.Questions) || s.IsTimerMode || s.IsPaused || s.IsCompleted {
			return false
		}
		s.CurrentIndex = index
		s.TimeLeft = e.questionSeconds
		return true
	})
}

// ToggleTimer switches timer mode. It is only accepted on the first question
// before anything has been answered.
func (e *Engine) ToggleTimer(enabled bool) {
	e.update(func(now time.Time) bool {
		s := &e.state
		if s.IsCompleted || s.CurrentIndex != 0 || e.answeredLocked() > 0 {
			return false
		}
		s.IsTimerMode = enabled
		s.TimeLeft = e.questionSeconds
		if !enabled && s.IsPaused {
			s.IsPaused = false
			e.lastTick = now
		}
		return true
	})
}

// TogglePause pauses or resumes a timer-mode session. Time spent paused is
// never credited to TimeElapsed.
func (e *Engine) TogglePause() {
	e.update(func(now time.Time) bool {
		s := &e.state
		if s.IsCompleted || !s.IsTimerMode {
			return false
		}
		if s.IsPaused {
			s.IsPaused = false
			e.lastTick = now
			return true
		}
		e.creditLocked(now)
		s.IsPaused = true
		return true
	})
}

// ResetQuiz discards all progress and starts a new session key.
func (e *Engine) ResetQuiz() {
	e.update(func(now time.Time) bool {
		e.state = e.initialState(now)
		e.lastTick = now
		return true
	})
}

// FinishQuiz completes the quiz from an answered last question.
func (e *Engine) FinishQuiz() {
	e.update(func(now time.Time) bool {
		s := &e.state
		last := len(e.quiz.Questions) - 1
		if s.IsCompleted || s.IsPaused || s.CurrentIndex != last || s.Answers[last] == "" {
			return false
		}
		e.completeLocked(now)
		return true
	})
}

// Tick advances the session clock by one step. In timer mode an expiring
// question is skipped as unanswered and breaks the streak.
func (e *Engine) Tick() {
	e.update(func(now time.Time) bool {
		s := &e.state
		if s.IsPaused || s.IsCompleted {
			return false
		}
		e.creditLocked(now)
		if !s.IsTimerMode {
			return true
		}
		if s.TimeLeft <= 1 {
			s.Streak = 0
			e.advanceLocked(now)
			return true
		}
		s.TimeLeft--
		return true
	})
}

// Stats derives score and progress figures from the current state.
func (e *Engine) Stats() domain.QuizStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) update(fn func(now time.Time) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !fn(e.clock.Now()) {
		return
	}
	snap := e.snapshotLocked()
	if e.onChange != nil {
		e.onChange(snap.State.Clone())
	}
	e.broadcastLocked(snap)
}

func (e *Engine) advanceLocked(now time.Time) {
	s := &e.state
	if s.CurrentIndex+1 >= len(e.quiz.Questions) {
		e.completeLocked(now)
		return
	}
	s.CurrentIndex++
	s.TimeLeft = e.questionSeconds
}

func (e *Engine) completeLocked(now time.Time) {
	e.creditLocked(now)
	e.state.IsCompleted = true
	e.state.IsPaused = false
}

// creditLocked folds active time since the last tick into TimeElapsed.
func (e *Engine) creditLocked(now time.Time) {
	if delta := now.Sub(e.lastTick); delta > 0 {
		e.state.TimeElapsed += delta
	}
	e.lastTick = now
}

func (e *Engine) answeredLocked() int {
	n := 0
	for _, a := range e.state.Answers {
		if a != "" {
			n++
		}
	}
	return n
}

func (e *Engine) statsLocked() domain.QuizStats {
	return ComputeStats(e.quiz, e.state)
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{State: e.state.Clone(), Stats: e.statsLocked()}
}

// ComputeStats derives the read-only figures for state over quiz.
func ComputeStats(quiz domain.Quiz, s domain.QuizState) domain.QuizStats {
	total := len(quiz.Questions)
	stats := domain.QuizStats{IsLastQuestion: s.CurrentIndex == total-1}
	for i, answer := range s.Answers {
		if i < total && answer != "" && answer == quiz.Questions[i].CorrectAnswer {
			stats.Score++
		}
	}
	if total > 0 {
		stats.Progress = float64(s.CurrentIndex+1) / float64(total) * 100
		if stats.Progress > 100 {
			stats.Progress = 100
		}
	}
	if remaining := total - (s.CurrentIndex + 1); remaining > 0 {
		stats.Remaining = remaining
	}
	if s.CurrentIndex > 0 {
		stats.AvgTimePerQuestion = s.TimeElapsed / time.Duration(s.CurrentIndex)
	}
	return stats
}
