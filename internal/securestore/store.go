// Package securestore persists values with an integrity hash and an expiry.
// Loads never fail: anything corrupt, stale or rejected by the caller's
// validator is deleted and replaced by the caller's fallback.
package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
)

const (
	DefaultExpiration    = 12 * time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Backend is the raw key/value storage underneath a Store.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store wraps a Backend with the record codec.
type Store struct {
	backend    Backend
	clock      clock.Clock
	expiration time.Duration
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithExpiration sets the maximum record age; zero keeps the default.
func WithExpiration(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.expiration = d
		}
	}
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, clock: clock.Real{}, expiration: DefaultExpiration}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save encodes value and writes it under key.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	encoded, err := Encode(value, s.clock.Now())
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, encoded); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load returns the stored value for key, or fallback when it is missing or
// has been discarded. validate may be nil.
func Load[T any](ctx context.Context, s *Store, key string, fallback T, validate func(T) error) T {
	value, err := read[T](ctx, s, key, validate)
	if err != nil {
		return fallback
	}
	return value
}

// Update applies fn to the current value (or fallback) and saves the result.
func Update[T any](ctx context.Context, s *Store, key string, fallback T, fn func(T) T) (T, error) {
	next := fn(Load(ctx, s, key, fallback, nil))
	return next, s.Save(ctx, key, next)
}

var errMissing = errors.New("missing")

func read[T any](ctx context.Context, s *Store, key string, validate func(T) error) (T, error) {
	var value T
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		log.Printf("securestore: read %s: %v", key, err)
		return value, err
	}
	if !ok {
		return value, errMissing
	}

	rec, err := s.decode(raw)
	if err == nil {
		if uerr := json.Unmarshal(rec.Value, &value); uerr != nil {
			err = fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, uerr)
		}
	}
	if err == nil && validate != nil {
		if verr := validate(value); verr != nil {
			err = fmt.Errorf("%w: %v", domain.ErrStorageValidationFailed, verr)
		}
	}
	if err != nil {
		s.discard(ctx, key, err)
		var zero T
		return zero, err
	}
	return value, nil
}

// decode checks integrity and age of a raw backend value.
func (s *Store) decode(raw string) (Record, error) {
	rec, err := Decode(raw)
	if err != nil {
		return Record{}, err
	}
	if rec.Expired(s.clock.Now(), s.expiration) {
		return Record{}, fmt.Errorf("%w: written %s", domain.ErrStorageExpired, rec.Created().UTC().Format(time.RFC3339))
	}
	return rec, nil
}

func (s *Store) discard(ctx context.Context, key string, reason error) {
	log.Printf("securestore: discarding %s: %v", key, reason)
	if err := s.backend.Delete(ctx, key); err != nil {
		log.Printf("securestore: delete %s: %v", key, err)
	}
}

// Sweep evicts every entry that is corrupt or expired and returns how many
// were removed. Caller validators are not known here and are applied on Load.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: list keys: %w", err)
	}
	evicted := 0
	for _, key := range keys {
		raw, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return evicted, fmt.Errorf("sweep: read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if _, err := s.decode(raw); err != nil {
			s.discard(ctx, key, err)
			evicted++
		}
	}
	return evicted, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("securestore: %v", err)
			} else if n > 0 {
				log.Printf("securestore: swept %d stale entries", n)
			}
		}
	}
}
