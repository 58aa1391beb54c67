package engine

import (
	"testing"
	"time"
)

func TestPendingBuyResolveConsumesEntry(t *testing.T) {
	r := NewPendingBuyRegistry(5*time.Minute, testLogger())
	r.Track("ord-1", "AAPL", 100, 10.00)

	e, ok := r.Resolve("ord-1")
	if !ok || e.Symbol != "AAPL" || e.Qty != 100 {
		t.Fatalf("Resolve = %+v (ok=%v), want tracked entry", e, ok)
	}
	if _, ok := r.Resolve("ord-1"); ok {
		t.Error("second Resolve returned an entry, want consumed")
	}
}

func TestPendingBuyTrackDuplicateIsNoop(t *testing.T) {
	r := NewPendingBuyRegistry(5*time.Minute, testLogger())
	r.Track("ord-1", "AAPL", 100, 10.00)
	r.Track("ord-1", "AAPL", 999, 99.00)

	e, _ := r.Resolve("ord-1")
	if e.Qty != 100 {
		t.Errorf("qty = %v, want original 100", e.Qty)
	}
}

func TestPendingBuyStaleness(t *testing.T) {
	r := NewPendingBuyRegistry(time.Minute, testLogger())
	r.Track("ord-1", "AAPL", 100, 10.00)
	e, _ := r.Resolve("ord-1")

	if r.IsStale(e, e.CreatedAt.Add(30*time.Second)) {
		t.Error("entry stale within TTL")
	}
	if !r.IsStale(e, e.CreatedAt.Add(2*time.Minute)) {
		t.Error("entry not stale past TTL")
	}
}

func TestPendingBuyCleanupSymbol(t *testing.T) {
	r := NewPendingBuyRegistry(5*time.Minute, testLogger())
	r.Track("ord-1", "AAPL", 100, 10.00)
	r.Track("ord-2", "AAPL", 50, 10.10)
	r.Track("ord-3", "TSLA", 10, 200.00)

	r.CleanupSymbol("AAPL")

	if r.Contains("ord-1") || r.Contains("ord-2") {
		t.Error("AAPL entries survived cleanup")
	}
	if !r.Contains("ord-3") {
		t.Error("TSLA entry removed by AAPL cleanup")
	}
}

func TestPendingBuyReapStale(t *testing.T) {
	r := NewPendingBuyRegistry(time.Minute, testLogger())
	r.Track("ord-1", "AAPL", 100, 10.00)

	if got := r.ReapStale(time.Now()); len(got) != 0 {
		t.Errorf("reaped %d fresh entries, want 0", len(got))
	}
	reaped := r.ReapStale(time.Now().Add(2 * time.Minute))
	if len(reaped) != 1 || reaped[0].OrderID != "ord-1" {
		t.Errorf("reaped = %+v, want ord-1", reaped)
	}
	if r.Contains("ord-1") {
		t.Error("reaped entry still tracked")
	}
}

func TestProtectiveSingleEntryPerSymbol(t *testing.T) {
	r := NewProtectiveOrderRegistry()
	r.Put("AAPL", "ord-1", StateAwaitingAck, 100)
	r.Put("AAPL", "ord-2", StateConfirmed, 150)

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].OrderID != "ord-2" || entries[0].Qty != 150 {
		t.Errorf("entry = %+v, want latest put", entries[0])
	}
}

func TestProtectivePromote(t *testing.T) {
	r := NewProtectiveOrderRegistry()
	r.Put("AAPL", "ord-1", StateAwaitingAck, 100)

	if !r.Promote("ord-1") {
		t.Fatal("Promote returned false for awaiting entry")
	}
	if e, _ := r.Get("AAPL"); e.State != StateConfirmed {
		t.Errorf("state = %q, want confirmed", e.State)
	}
	if r.Promote("ord-1") {
		t.Error("second Promote returned true, want no-op")
	}
	if r.Promote("unknown") {
		t.Error("Promote of unknown order returned true")
	}
}

func TestProtectiveRemoveByOrderClearsMarker(t *testing.T) {
	r := NewProtectiveOrderRegistry()
	r.Put("AAPL", "ord-1", StateAwaitingAck, 100)
	r.BeginWork("AAPL")

	if !r.RemoveByOrder("ord-1") {
		t.Fatal("RemoveByOrder returned false")
	}
	if _, ok := r.Get("AAPL"); ok {
		t.Error("entry survived removal")
	}
	if r.InProgress("AAPL") {
		t.Error("in-progress marker survived removal")
	}
}

func TestProtectiveWorkMarker(t *testing.T) {
	r := NewProtectiveOrderRegistry()

	if r.InProgress("AAPL") {
		t.Error("fresh registry reports in-progress")
	}
	r.BeginWork("AAPL")
	if !r.InProgress("AAPL") {
		t.Error("marker not set")
	}
	if r.InProgress("TSLA") {
		t.Error("marker leaked across symbols")
	}
	r.EndWork("AAPL")
	if r.InProgress("AAPL") {
		t.Error("marker not cleared")
	}
}
