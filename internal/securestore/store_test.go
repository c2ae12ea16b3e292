package securestore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/infra/memory"
	"campus-portal-service/internal/securestore"
)

var epoch = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*securestore.Store, *memory.KVStore, *clock.Manual) {
	t.Helper()
	backend := memory.NewKVStore()
	clk := clock.NewManual(epoch)
	return securestore.New(backend, securestore.WithClock(clk)), backend, clk
}

func sampleState() domain.QuizState {
	return domain.QuizState{
		CurrentIndex: 2,
		Answers:      []string{"b", "", "a", "", ""},
		TimeLeft:     17,
		IsTimerMode:  true,
		SessionKey:   "key-1",
		StartTime:    epoch,
		TimeElapsed:  42 * time.Second,
		Streak:       1,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	state := sampleState()
	opaque, err := securestore.Encode(state, epoch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got domain.QuizState
	if err := securestore.DecodeValue(opaque, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.StartTime.Equal(state.StartTime) {
		t.Fatalf("start time changed: %v -> %v", state.StartTime, got.StartTime)
	}
	got.StartTime = state.StartTime
	if got.CurrentIndex != state.CurrentIndex || strings.Join(got.Answers, ",") != strings.Join(state.Answers, ",") ||
		got.TimeLeft != state.TimeLeft || got.IsTimerMode != state.IsTimerMode || got.SessionKey != state.SessionKey ||
		got.TimeElapsed != state.TimeElapsed || got.Streak != state.Streak {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, state)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := securestore.Decode("%%%not-base64"); !errors.Is(err, domain.ErrStorageCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
}

func TestLoadReturnsSavedValue(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)

	if err := store.Save(ctx, "quiz:1", sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := securestore.Load(ctx, store, "quiz:1", domain.QuizState{}, nil)
	if got.SessionKey != "key-1" || got.TimeLeft != 17 {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestLoadMissingReturnsFallback(t *testing.T) {
	store, _, _ := newStore(t)
	got := securestore.Load(context.Background(), store, "absent", 7, nil)
	if got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
}

func TestTamperedRecordFallsBackAndIsRemoved(t *testing.T) {
	ctx := context.Background()
	store, backend, _ := newStore(t)

	opaque, err := securestore.Encode(map[string]int{"score": 3}, epoch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Rewrite the value but keep the original hash.
	rec, err := securestore.Decode(opaque)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tamperedJSON := `{"value":{"score":99},"timestamp":` + itoa(rec.Timestamp) + `,"hash":"` + rec.Hash + `"}`
	_ = backend.Set(ctx, "scores", encodeRaw(tamperedJSON))

	got := securestore.Load(ctx, store, "scores", map[string]int{"score": 0}, nil)
	if got["score"] != 0 {
		t.Fatalf("expected fallback, got %v", got)
	}
	if _, ok, _ := backend.Get(ctx, "scores"); ok {
		t.Fatalf("expected tampered entry removed")
	}
}

func TestExpiredRecordDiscarded(t *testing.T) {
	ctx := context.Background()
	store, backend, clk := newStore(t)

	if err := store.Save(ctx, "k", "v"); err != nil {
		t.Fatalf("save: %v", err)
	}
	clk.Advance(securestore.DefaultExpiration - time.Minute)
	if got := securestore.Load(ctx, store, "k", "fallback", nil); got != "v" {
		t.Fatalf("expected value before expiry, got %q", got)
	}
	clk.Advance(2 * time.Minute)
	if got := securestore.Load(ctx, store, "k", "fallback", nil); got != "fallback" {
		t.Fatalf("expected fallback after expiry, got %q", got)
	}
	if _, ok, _ := backend.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry removed")
	}
}

func TestValidatorRejection(t *testing.T) {
	ctx := context.Background()
	store, backend, _ := newStore(t)
	_ = store.Save(ctx, "n", 12)

	got := securestore.Load(ctx, store, "n", 0, func(v int) error {
		if v > 10 {
			return errors.New("too large")
		}
		return nil
	})
	if got != 0 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if _, ok, _ := backend.Get(ctx, "n"); ok {
		t.Fatalf("expected rejected entry removed")
	}
}

func TestUpdateAppliesFunction(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)

	for i := 0; i < 3; i++ {
		if _, err := securestore.Update(ctx, store, "counter", 0, func(n int) int { return n + 1 }); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if got := securestore.Load(ctx, store, "counter", 0, nil); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestSaveRejectsUnserializable(t *testing.T) {
	store, _, _ := newStore(t)
	if err := store.Save(context.Background(), "bad", make(chan int)); err == nil {
		t.Fatalf("expected serialization error")
	}
}

func TestSweepEvictsStaleEntries(t *testing.T) {
	ctx := context.Background()
	store, backend, clk := newStore(t)

	_ = store.Save(ctx, "old", 1)
	clk.Advance(13 * time.Hour)
	_ = store.Save(ctx, "fresh", 2)
	_ = backend.Set(ctx, "junk", "not a record")

	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}
	keys, _ := backend.Keys(ctx)
	if len(keys) != 1 || keys[0] != "fresh" {
		t.Fatalf("unexpected remaining keys %v", keys)
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	store, backend, clk := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, time.Minute)
		close(done)
	}()

	waitUntil(t, func() bool { return clk.Tickers() == 1 })
	_ = backend.Set(context.Background(), "junk", "garbage")
	clk.Advance(time.Minute)
	waitUntil(t, func() bool {
		_, ok, _ := backend.Get(context.Background(), "junk")
		return !ok
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
