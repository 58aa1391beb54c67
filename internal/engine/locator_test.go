package engine

import (
	"testing"
	"time"

	"sentinel/internal/domain"
)

func newLocatorFixture() (*StopLimitLocator, *ProtectiveOrderRegistry, *OrderCache) {
	reg := NewProtectiveOrderRegistry()
	cache := NewOrderCache()
	return NewStopLimitLocator(reg, cache), reg, cache
}

func TestLocatorPrefersRegistryEntry(t *testing.T) {
	loc, reg, cache := newLocatorFixture()
	now := time.Now()

	reg.Put("AAPL", "ord-1", StateConfirmed, 100)
	cache.Apply(domain.Order{ID: "ord-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeStopLimit, Status: domain.OrderStatusAcknowledged, Qty: 120, UpdatedAt: now})

	res := loc.Find("AAPL")
	if res.Status != LocateConfirmed {
		t.Errorf("status = %q, want confirmed", res.Status)
	}
	if res.OrderID != "ord-1" {
		t.Errorf("orderID = %q, want ord-1", res.OrderID)
	}
	// The cache's live quantity wins over the registry's recorded one.
	if res.Qty != 120 {
		t.Errorf("qty = %v, want cache-reported 120", res.Qty)
	}
	if !res.Tracked {
		t.Error("registry match not flagged as tracked")
	}
}

func TestLocatorAwaitingAckState(t *testing.T) {
	loc, reg, _ := newLocatorFixture()
	reg.Put("AAPL", "ord-1", StateAwaitingAck, 100)

	res := loc.Find("AAPL")
	if res.Status != LocateAwaitingAck {
		t.Errorf("status = %q, want awaiting_ack", res.Status)
	}
	if res.Qty != 100 {
		t.Errorf("qty = %v, want registry-recorded 100", res.Qty)
	}
}

func TestLocatorSkipsDeadRegistryEntry(t *testing.T) {
	loc, reg, cache := newLocatorFixture()
	now := time.Now()

	reg.Put("AAPL", "ord-1", StateConfirmed, 100)
	cache.Apply(domain.Order{ID: "ord-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeStopLimit, Status: domain.OrderStatusCancelled, UpdatedAt: now})

	if res := loc.Find("AAPL"); res.Status != LocateNone {
		t.Errorf("status = %q, want none for dead registry entry", res.Status)
	}
}

func TestLocatorFallsBackToCacheScan(t *testing.T) {
	loc, _, cache := newLocatorFixture()
	now := time.Now()

	// An order the registry never saw, e.g. placed before a restart.
	cache.Apply(domain.Order{ID: "manual-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeStopLimit, Status: domain.OrderStatusWorking, Qty: 75,
		CreatedAt: now, UpdatedAt: now})

	res := loc.Find("AAPL")
	if res.Status != LocateConfirmed {
		t.Errorf("status = %q, want confirmed for live cache match", res.Status)
	}
	if res.OrderID != "manual-1" || res.Qty != 75 {
		t.Errorf("result = %+v, want manual-1 qty 75", res)
	}
	if res.Tracked {
		t.Error("cache-only match flagged as tracked")
	}
}

func TestLocatorNoneWhenNothingLive(t *testing.T) {
	loc, _, _ := newLocatorFixture()
	if res := loc.Find("AAPL"); res.Status != LocateNone {
		t.Errorf("status = %q, want none", res.Status)
	}
}
