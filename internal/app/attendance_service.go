package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/qrtoken"
)

// Recorder persists or forwards attendance records.
type Recorder interface {
	Record(ctx context.Context, rec domain.AttendanceRecord) error
}

// RecordLister is implemented by recorders that can read records back.
type RecordLister interface {
	List(ctx context.Context, courseID string) ([]domain.AttendanceRecord, error)
}

// ReplayGuard enforces single use of a (kind, value) pair within ttl.
type ReplayGuard interface {
	Use(ctx context.Context, kind, value string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, kind, value string) error
}

// AttendanceService issues attendance tokens, drives live QR displays and
// turns verified scans into attendance records.
type AttendanceService struct {
	signer   *qrtoken.Signer
	recorder Recorder
	replay   ReplayGuard
	clock    clock.Clock
	interval time.Duration
	slack    time.Duration

	mu       sync.Mutex
	displays map[string]*qrtoken.Refresher
}

type AttendanceOption func(*AttendanceService)

func WithAttendanceClock(c clock.Clock) AttendanceOption {
	return func(s *AttendanceService) { s.clock = c }
}

// WithRefreshInterval sets how often live displays regenerate their token.
func WithRefreshInterval(d time.Duration) AttendanceOption {
	return func(s *AttendanceService) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithReplaySlack extends how long a used token stays blocked past its validity.
func WithReplaySlack(d time.Duration) AttendanceOption {
	return func(s *AttendanceService) {
		if d >= 0 {
			s.slack = d
		}
	}
}

func NewAttendanceService(signer *qrtoken.Signer, recorder Recorder, replay ReplayGuard, opts ...AttendanceOption) *AttendanceService {
	s := &AttendanceService{
		signer:   signer,
		recorder: recorder,
		replay:   replay,
		clock:    clock.Real{},
		interval: signer.Validity(),
		slack:    time.Minute,
		displays: make(map[string]*qrtoken.Refresher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken signs a one-off token for courseID.
func (s *AttendanceService) IssueToken(ctx context.Context, courseID string) (domain.QRPayload, string, error) {
	return s.signer.Issue(ctx, courseID)
}

// CheckIn verifies a scanned token for the expected course and records the
// student's attendance. A student can use each token once.
func (s *AttendanceService) CheckIn(ctx context.Context, token, courseID, studentID string) (domain.AttendanceRecord, error) {
	if strings.TrimSpace(studentID) == "" {
		return domain.AttendanceRecord{}, domain.ErrUnauthorized
	}
	payload, err := s.signer.Verify(token, courseID)
	if err != nil {
		return domain.AttendanceRecord{}, err
	}

	replayKey := payload.Nonce + "|" + studentID
	fresh, err := s.replay.Use(ctx, "attendance", replayKey, s.signer.Validity()+s.slack)
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("%w: replay check: %v", domain.ErrSubmissionFailed, err)
	}
	if !fresh {
		return domain.AttendanceRecord{}, domain.ErrAlreadyRecorded
	}

	rec := domain.AttendanceRecord{
		CourseID:  payload.CourseID,
		StudentID: studentID,
		Timestamp: s.clock.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		if rerr := s.replay.Release(ctx, "attendance", replayKey); rerr != nil {
			log.Printf("attendance: release replay key for %s: %v", studentID, rerr)
		}
		return domain.AttendanceRecord{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	return rec, nil
}

// List returns the recorded attendance for a course.
func (s *AttendanceService) List(ctx context.Context, courseID string) ([]domain.AttendanceRecord, error) {
	lister, ok := s.recorder.(RecordLister)
	if !ok {
		return nil, domain.ErrNotSupported
	}
	return lister.List(ctx, courseID)
}

// Watch attaches a display to the course's auto-refreshing token, starting
// the refresher for the first display. The returned cancel detaches it and
// stops the refresher when no display is left.
func (s *AttendanceService) Watch(courseID string) (<-chan qrtoken.Snapshot, func()) {
	s.mu.Lock()
	refresher, ok := s.displays[courseID]
	if !ok {
		refresher = qrtoken.NewRefresher(s.signer, courseID,
			qrtoken.WithRefresherClock(s.clock),
			qrtoken.WithInterval(s.interval),
		)
		s.displays[courseID] = refresher
	}
	updates, unsubscribe := refresher.Subscribe()
	s.mu.Unlock()

	if !ok {
		refresher.Start(context.Background())
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			s.mu.Lock()
			idle := refresher.Subscribers() == 0 && s.displays[courseID] == refresher
			if idle {
				delete(s.displays, courseID)
			}
			s.mu.Unlock()
			if idle {
				refresher.Stop()
			}
		})
	}
	return updates, cancel
}

// Display returns the current snapshot of a course's live display.
func (s *AttendanceService) Display(courseID string) (qrtoken.Snapshot, error) {
	s.mu.Lock()
	refresher, ok := s.displays[courseID]
	s.mu.Unlock()
	if !ok {
		return qrtoken.Snapshot{}, domain.ErrDisplayNotFound
	}
	return refresher.Snapshot(), nil
}

// RefreshDisplay regenerates a live display's token immediately.
func (s *AttendanceService) RefreshDisplay(ctx context.Context, courseID string) (qrtoken.Snapshot, error) {
	s.mu.Lock()
	refresher, ok := s.displays[courseID]
	s.mu.Unlock()
	if !ok {
		return qrtoken.Snapshot{}, domain.ErrDisplayNotFound
	}
	refresher.Refresh(ctx)
	return refresher.Snapshot(), nil
}

// Shutdown stops every live display.
func (s *AttendanceService) Shutdown() {
	s.mu.Lock()
	displays := s.displays
	s.displays = make(map[string]*qrtoken.Refresher)
	s.mu.Unlock()
	for _, r := range displays {
		r.Stop()
	}
}
