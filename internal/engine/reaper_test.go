package engine

import (
	"context"
	"testing"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/journal"
)

func newReaperFixture(ttl time.Duration) (*Reaper, *PendingBuyRegistry, *ProtectiveOrderRegistry, *OrderCache) {
	pending := NewPendingBuyRegistry(ttl, testLogger())
	protective := NewProtectiveOrderRegistry()
	cache := NewOrderCache()
	r := NewReaper(time.Hour, pending, protective, cache, journal.Nop{}, testLogger())
	return r, pending, protective, cache
}

func TestReaperRemovesStalePendingBuys(t *testing.T) {
	r, pending, _, _ := newReaperFixture(time.Minute)
	pending.Track("ord-1", "AAPL", 100, 10.00)

	r.Sweep(context.Background())
	if !pending.Contains("ord-1") {
		t.Fatal("fresh entry reaped")
	}

	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	r.Sweep(context.Background())
	if pending.Contains("ord-1") {
		t.Error("stale entry survived sweep")
	}
}

func TestReaperRemovesDeadProtectiveEntries(t *testing.T) {
	r, _, protective, cache := newReaperFixture(time.Minute)
	now := time.Now()

	protective.Put("AAPL", "ord-1", StateConfirmed, 100)
	cache.Apply(domain.Order{ID: "ord-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeStopLimit, Status: domain.OrderStatusFilled, UpdatedAt: now})

	r.Sweep(context.Background())
	if _, ok := protective.Get("AAPL"); ok {
		t.Error("entry for terminal order survived sweep")
	}
}

func TestReaperKeepsEntriesNotYetSeenOnFeed(t *testing.T) {
	r, _, protective, _ := newReaperFixture(time.Minute)

	// Submitted moments ago; first feed event still in flight.
	protective.Put("AAPL", "ord-1", StateAwaitingAck, 100)

	r.Sweep(context.Background())
	if _, ok := protective.Get("AAPL"); !ok {
		t.Error("unseen entry reaped, want kept for next sweep")
	}
}

func TestReaperRemovesDriftedProtectiveEntries(t *testing.T) {
	r, _, protective, cache := newReaperFixture(time.Minute)
	now := time.Now()

	// Order mutated out from under the registry, e.g. replaced manually
	// with a different type.
	protective.Put("AAPL", "ord-1", StateConfirmed, 100)
	cache.Apply(domain.Order{ID: "ord-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeLimit, Status: domain.OrderStatusWorking, UpdatedAt: now})

	r.Sweep(context.Background())
	if _, ok := protective.Get("AAPL"); ok {
		t.Error("entry for type-drifted order survived sweep")
	}
}
