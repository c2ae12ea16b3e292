package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"campus-portal-service/internal/clock"
)

// Replay is a process-local single-use cache for (kind, value) pairs.
// Expired entries are purged every purgeEvery calls to Use.
type Replay struct {
	clock clock.Clock

	mu       sync.Mutex
	entries  map[string]time.Time
	useCount uint64
	purgeN   uint64
}

func NewReplay(clk clock.Clock, purgeEvery int) *Replay {
	if clk == nil {
		clk = clock.Real{}
	}
	if purgeEvery <= 0 {
		purgeEvery = 1024
	}
	return &Replay{
		clock:   clk,
		entries: make(map[string]time.Time),
		purgeN:  uint64(purgeEvery),
	}
}

// Use marks the pair consumed for ttl. It reports false when the pair is
// already consumed and not yet expired.
func (m *Replay) Use(_ context.Context, kind, value string, ttl time.Duration) (bool, error) {
	k, err := replayKey(kind, value)
	if err != nil {
		return false, err
	}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.useCount++
	if m.useCount%m.purgeN == 0 {
		m.purgeLocked(now)
	}
	if until, ok := m.entries[k]; ok && until.After(now) {
		return false, nil
	}
	m.entries[k] = now.Add(ttl)
	return true, nil
}

// Release forgets the pair so it can be used again.
func (m *Replay) Release(_ context.Context, kind, value string) error {
	k, err := replayKey(kind, value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, k)
	m.mu.Unlock()
	return nil
}

// Len returns the number of tracked entries, expired ones included.
func (m *Replay) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Replay) purgeLocked(now time.Time) {
	for k, until := range m.entries {
		if !until.After(now) {
			delete(m.entries, k)
		}
	}
}

func replayKey(kind, value string) (string, error) {
	kind = strings.TrimSpace(strings.ToLower(kind))
	value = strings.TrimSpace(value)
	if kind == "" || value == "" {
		return "", fmt.Errorf("replay: kind and value are required")
	}
	return kind + "|" + value, nil
}
