package qrtoken

import (
	"context"
	"log"
	"sync"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
)

// Snapshot is what a QR display renders.
type Snapshot struct {
	CourseID    string `json:"courseId"`
	Token       string `json:"token"`
	IsExpired   bool   `json:"isExpired"`
	SecondsLeft int    `json:"secondsLeft"`
	Error       string `json:"error,omitempty"`
	Generation  uint64 `json:"generation"`
}

// Refresher keeps one current token for a course: it regenerates on a fixed
// interval and counts the displayed token down once per second against the
// token's signed expiry. Only the most recently requested generation may
// become current.
type Refresher struct {
	issuer   Issuer
	courseID string
	clock    clock.Clock
	interval time.Duration

	mu          sync.Mutex
	current     Snapshot
	payload     domain.QRPayload
	seq         uint64
	subscribers map[chan Snapshot]struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

type RefresherOption func(*Refresher)

func WithRefresherClock(c clock.Clock) RefresherOption {
	return func(r *Refresher) { r.clock = c }
}

// WithInterval sets how often a new token is generated.
func WithInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d >= time.Second {
			r.interval = d
		}
	}
}

func NewRefresher(issuer Issuer, courseID string, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		issuer:      issuer,
		courseID:    courseID,
		clock:       clock.Real{},
		interval:    DefaultValidity,
		current:     Snapshot{CourseID: courseID, IsExpired: true},
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CourseID returns the course this refresher serves.
func (r *Refresher) CourseID() string { return r.courseID }

// Start generates the first token and then runs the refresh and countdown
// timers until Stop or ctx cancellation.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	refresh := r.clock.NewTicker(r.interval)
	countdown := r.clock.NewTicker(time.Second)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	r.Refresh(ctx)

	go func() {
		defer close(done)
		defer refresh.Stop()
		defer countdown.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-refresh.C():
				r.Refresh(ctx)
			case <-countdown.C():
				r.Countdown()
			}
		}
	}()
}

// Stop cancels both timers and closes all subscriptions.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	r.mu.Lock()
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
	r.mu.Unlock()
}

// Refresh generates a new token now. A generation that finishes after a newer
// one was requested is discarded.
func (r *Refresher) Refresh(ctx context.Context) {
	r.mu.Lock()
	r.seq++
	gen := r.seq
	r.mu.Unlock()

	payload, token, err := r.issuer.Issue(ctx, r.courseID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.seq {
		return
	}
	if err != nil {
		log.Printf("qrtoken: refresh %s: %v", r.courseID, err)
		r.current.IsExpired = true
		r.current.SecondsLeft = 0
		r.current.Error = domain.UserMessage(err)
		r.current.Generation = gen
	} else {
		left := SecondsLeft(payload, r.clock.Now())
		r.payload = payload
		r.current = Snapshot{
			CourseID:    r.courseID,
			Token:       token,
			IsExpired:   left == 0,
			SecondsLeft: left,
			Generation:  gen,
		}
	}
	r.broadcastLocked()
}

// Countdown recomputes the seconds left on the displayed token and marks it
// expired once its expiresAt has passed.
func (r *Refresher) Countdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.IsExpired {
		return
	}
	r.current.SecondsLeft = SecondsLeft(r.payload, r.clock.Now())
	if r.current.SecondsLeft == 0 {
		r.current.IsExpired = true
	}
	r.broadcastLocked()
}

// Snapshot returns the current display state.
func (r *Refresher) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe returns a channel of display updates, starting with the current
// one. The caller must invoke cancel.
func (r *Refresher) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	ch <- r.current
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports how many displays are attached.
func (r *Refresher) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

func (r *Refresher) broadcastLocked() {
	snap := r.current
	for ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
