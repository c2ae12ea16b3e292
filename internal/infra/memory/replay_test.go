package memory

import (
	"context"
	"testing"
	"time"

	"campus-portal-service/internal/clock"
)

func TestReplaySingleUse(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	r := NewReplay(clk, 0)
	ctx := context.Background()

	ok, err := r.Use(ctx, "attendance", "n1|alice", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first use: ok=%v err=%v", ok, err)
	}
	if ok, _ := r.Use(ctx, "ATTENDANCE", " n1|alice ", time.Minute); ok {
		t.Fatalf("expected replay to be rejected")
	}
	if ok, _ := r.Use(ctx, "attendance", "n1|bob", time.Minute); !ok {
		t.Fatalf("other student must be accepted")
	}

	clk.Advance(time.Minute + time.Second)
	if ok, _ := r.Use(ctx, "attendance", "n1|alice", time.Minute); !ok {
		t.Fatalf("expired entry should be reusable")
	}
}

func TestReplayRelease(t *testing.T) {
	r := NewReplay(nil, 0)
	ctx := context.Background()
	if _, err := r.Use(ctx, "", "x", time.Minute); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	r.Use(ctx, "attendance", "n1", time.Minute)
	if err := r.Release(ctx, "attendance", "n1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := r.Use(ctx, "attendance", "n1", time.Minute); !ok {
		t.Fatalf("released entry should be usable again")
	}
}

func TestReplayPurgesExpired(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	r := NewReplay(clk, 2)
	ctx := context.Background()
	r.Use(ctx, "attendance", "a", time.Second)
	clk.Advance(2 * time.Second)
	r.Use(ctx, "attendance", "b", time.Second)
	if r.Len() != 1 {
		t.Fatalf("expected expired entry purged, have %d", r.Len())
	}
}
