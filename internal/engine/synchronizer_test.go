package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel/internal/broker"
	"sentinel/internal/domain"
)

func TestConcurrentFillWaitsAndMerges(t *testing.T) {
	e, sim := newTestEngine(t)
	ctx := context.Background()

	e.positions.ApplyQty("AAPL", 150, time.Now())

	// Another fill's creation is underway for the symbol.
	prot, _ := sim.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "AAPL", Side: domain.OrderSideSell, Type: domain.OrderTypeStopLimit, Qty: 100,
	})
	e.protective.BeginWork("AAPL")

	e.pending.Track("buy-2", "AAPL", 50, 10.20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.sync.OnBuyFill(ctx, BuyFill{OrderID: "buy-2", Symbol: "AAPL", Qty: 50, Price: 10.20})
	}()

	// Let the second fill start polling, then resolve the first creation.
	time.Sleep(30 * time.Millisecond)
	e.cache.Apply(*prot)
	e.protective.Put("AAPL", prot.ID, StateAwaitingAck, 100)
	e.protective.EndWork("AAPL")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnBuyFill did not return")
	}

	calls := sim.ReplaceCalls()
	if len(calls) != 1 {
		t.Fatalf("replace calls = %d, want 1", len(calls))
	}
	if calls[0].OrderID != prot.ID || calls[0].NewQty != 150 {
		t.Errorf("replace = %+v, want order %s to qty 150", calls[0], prot.ID)
	}
	if got := len(sim.Submitted()); got != 1 {
		t.Errorf("submitted %d orders, want only the first protective", got)
	}
}

func TestInProgressTimeoutFallsThroughToCreate(t *testing.T) {
	e, sim := newTestEngine(t, func(c *Config) { c.LocateWait = 50 * time.Millisecond })
	ctx := context.Background()

	e.positions.ApplyQty("AAPL", 100, time.Now())
	e.protective.BeginWork("AAPL") // stuck forever

	e.pending.Track("buy-1", "AAPL", 100, 10.00)
	start := time.Now()
	e.sync.OnBuyFill(ctx, BuyFill{OrderID: "buy-1", Symbol: "AAPL", Qty: 100, Price: 10.00})

	if waited := time.Since(start); waited < 50*time.Millisecond {
		t.Errorf("returned after %v, want at least the locate-wait budget", waited)
	}
	if got := len(sim.Submitted()); got != 1 {
		t.Fatalf("submitted %d orders, want 1 protective after timeout", got)
	}
	if entry, ok := e.protective.Get("AAPL"); !ok || entry.State != StateAwaitingAck {
		t.Errorf("protective entry = %+v (ok=%v), want awaiting_ack", entry, ok)
	}
}

func TestFailedCreateLeavesNoRegistryEntry(t *testing.T) {
	e, sim := newTestEngine(t)
	ctx := context.Background()

	e.positions.ApplyQty("AAPL", 100, time.Now())
	e.pending.Track("buy-1", "AAPL", 100, 10.00)
	sim.FailSubmits(errors.New("account restricted"))

	e.sync.OnBuyFill(ctx, BuyFill{OrderID: "buy-1", Symbol: "AAPL", Qty: 100, Price: 10.00})

	if _, ok := e.protective.Get("AAPL"); ok {
		t.Error("registry entry recorded for an order that was never placed")
	}
	if e.protective.InProgress("AAPL") {
		t.Error("in-progress marker leaked after failed submission")
	}
}

func TestModifyFailureFallsBackToCreate(t *testing.T) {
	e, sim := newTestEngine(t)
	ctx := context.Background()

	e.positions.ApplyQty("AAPL", 150, time.Now())

	prot, _ := sim.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "AAPL", Side: domain.OrderSideSell, Type: domain.OrderTypeStopLimit, Qty: 100,
	})
	e.cache.Apply(*prot)
	e.protective.Put("AAPL", prot.ID, StateConfirmed, 100)

	sim.FailReplaces(errors.New("order is not replaceable"))
	e.pending.Track("buy-2", "AAPL", 50, 10.20)
	e.sync.OnBuyFill(ctx, BuyFill{OrderID: "buy-2", Symbol: "AAPL", Qty: 50, Price: 10.20})

	// The dead protective order was cancelled as a competing sell, and a
	// fresh one placed for this fill.
	foundCancel := false
	for _, id := range sim.Cancelled() {
		if id == prot.ID {
			foundCancel = true
		}
	}
	if !foundCancel {
		t.Error("stale protective order was not cancelled before re-creation")
	}

	subs := sim.Submitted()
	if len(subs) != 2 {
		t.Fatalf("submitted %d orders, want 2", len(subs))
	}
	fresh := subs[1]
	if fresh.Qty != 50 || fresh.Type != domain.OrderTypeStopLimit {
		t.Errorf("fallback order = %+v, want stop_limit qty 50", fresh)
	}
	if entry, _ := e.protective.Get("AAPL"); entry.OrderID != fresh.ID {
		t.Errorf("registry points at %q, want fallback order %q", entry.OrderID, fresh.ID)
	}
}

func TestCreateCancelsCompetingSells(t *testing.T) {
	e, sim := newTestEngine(t)
	ctx := context.Background()

	e.positions.ApplyQty("AAPL", 100, time.Now())

	// A manually placed limit sell is live on the symbol.
	manual, _ := sim.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "AAPL", Side: domain.OrderSideSell, Type: domain.OrderTypeLimit, Qty: 40, LimitPrice: 12,
	})
	e.cache.Apply(*manual)

	e.pending.Track("buy-1", "AAPL", 100, 10.00)
	e.sync.OnBuyFill(ctx, BuyFill{OrderID: "buy-1", Symbol: "AAPL", Qty: 100, Price: 10.00})

	cancelledManual := false
	for _, id := range sim.Cancelled() {
		if id == manual.ID {
			cancelledManual = true
		}
	}
	if !cancelledManual {
		t.Error("competing limit sell was not cancelled")
	}

	entry, ok := e.protective.Get("AAPL")
	if !ok {
		t.Fatal("no protective entry created")
	}
	if entry.Qty != 100 {
		t.Errorf("protective qty = %v, want 100", entry.Qty)
	}
}

func TestFillPriceBelowOffsetsAborts(t *testing.T) {
	e, sim := newTestEngine(t)
	ctx := context.Background()

	e.positions.ApplyQty("PENY", 500, time.Now())
	e.pending.Track("buy-1", "PENY", 500, 0.10)

	// 0.10 minus the 0.15 stop offset is negative; no order may reach the
	// brokerage with a non-positive price leg.
	e.sync.OnBuyFill(ctx, BuyFill{OrderID: "buy-1", Symbol: "PENY", Qty: 500, Price: 0.10})

	if got := len(sim.Submitted()); got != 0 {
		t.Fatalf("submitted %d orders for an unprotectable fill, want 0", got)
	}
	if _, ok := e.protective.Get("PENY"); ok {
		t.Error("registry entry recorded for an order that was never placed")
	}
	if e.protective.InProgress("PENY") {
		t.Error("in-progress marker leaked after aborted creation")
	}
}

func TestUntrackedFillIgnored(t *testing.T) {
	e, sim := newTestEngine(t)
	ctx := context.Background()

	e.positions.ApplyQty("AAPL", 100, time.Now())
	e.sync.OnBuyFill(ctx, BuyFill{OrderID: "unknown", Symbol: "AAPL", Qty: 100, Price: 10.00})

	if got := len(sim.Submitted()); got != 0 {
		t.Errorf("submitted %d orders for an untracked fill, want 0", got)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{9.85, 9.85},
		{10.0 - 0.15, 9.85},
		{9.849999999, 9.85},
		{9.80000001, 9.80},
		{0.004, 0.00},
	}
	for _, c := range cases {
		if got := round2(c.in); got != c.want {
			t.Errorf("round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
