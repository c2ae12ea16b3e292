package redis

import (
	"context"
	"testing"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/securestore"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestKVStoreBacksSecureStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backend := NewKVStore(newClient(mr), "test:", time.Hour)
	clk := clock.NewManual(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	store := securestore.New(backend, securestore.WithClock(clk), securestore.WithExpiration(time.Hour))

	if err := store.Save(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("test:greeting") {
		t.Fatalf("expected prefixed redis key")
	}
	if got := securestore.Load(ctx, store, "greeting", "fallback", nil); got != "hello" {
		t.Fatalf("expected stored value, got %q", got)
	}

	keys, err := backend.Keys(ctx)
	if err != nil || len(keys) != 1 || keys[0] != "greeting" {
		t.Fatalf("unexpected keys %v (%v)", keys, err)
	}

	clk.Advance(2 * time.Hour)
	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 || mr.Exists("test:greeting") {
		t.Fatalf("expected expired key swept, evicted=%d", n)
	}
}

func TestKVStoreMissingKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backend := NewKVStore(newClient(mr), "", 0)
	_, ok, err := backend.Get(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}
