package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sentinel/internal/domain"
)

// PositionTracker maintains the per-symbol position view from two sources:
// position quantities piggybacked on trade-update events, and a periodic
// reconciliation poll against the brokerage. When a symbol's quantity
// transitions from positive to zero or below, the closure callback fires
// exactly once per transition.
type PositionTracker struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	// updated holds the timestamp of the newest accepted quantity per
	// symbol. Event quantities older than it are redeliveries and must not
	// roll a reopened position back.
	updated map[string]time.Time

	onClosed func(symbol string)
	log      *slog.Logger
}

// NewPositionTracker creates a tracker that invokes onClosed on every
// open-to-closed transition. onClosed runs outside the tracker's lock.
func NewPositionTracker(onClosed func(symbol string), log *slog.Logger) *PositionTracker {
	return &PositionTracker{
		positions: make(map[string]domain.Position),
		updated:   make(map[string]time.Time),
		onClosed:  onClosed,
		log:       log,
	}
}

// Quantity returns the tracked quantity for symbol, zero if untracked.
func (t *PositionTracker) Quantity(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[symbol].Qty
}

// ApplyQty updates the symbol's quantity from an event-reported value,
// keeping any previously known average entry price. at is the event's
// timestamp; a quantity older than the last accepted one for the symbol is a
// feed redelivery and is dropped.
func (t *PositionTracker) ApplyQty(symbol string, qty float64, at time.Time) {
	t.mu.Lock()
	if at.Before(t.updated[symbol]) {
		t.mu.Unlock()
		t.log.Debug("dropping stale position quantity", "symbol", symbol, "qty", qty)
		return
	}
	t.updated[symbol] = at

	prev := t.positions[symbol].Qty
	if qty <= 0 {
		delete(t.positions, symbol)
	} else {
		p := t.positions[symbol]
		p.Symbol = symbol
		p.Qty = qty
		t.positions[symbol] = p
	}
	t.mu.Unlock()

	// Fire only on the open-to-closed edge. A zero report for a symbol that
	// was already flat must not re-trigger cleanup.
	if prev > 0 && qty <= 0 {
		t.log.Info("position closed", "symbol", symbol, "prevQty", prev)
		if t.onClosed != nil {
			t.onClosed(symbol)
		}
	}
}

// Reconcile replaces the tracked set with a full brokerage snapshot.
// Symbols that were held but are absent from the snapshot are treated as
// closed.
func (t *PositionTracker) Reconcile(positions []domain.Position) {
	now := time.Now()

	t.mu.Lock()
	var closed []string
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		seen[p.Symbol] = true
		t.updated[p.Symbol] = now
		prev := t.positions[p.Symbol].Qty
		if p.Qty <= 0 {
			delete(t.positions, p.Symbol)
			if prev > 0 {
				closed = append(closed, p.Symbol)
			}
			continue
		}
		t.positions[p.Symbol] = p
	}
	for sym, p := range t.positions {
		if !seen[sym] && p.Qty > 0 {
			delete(t.positions, sym)
			t.updated[sym] = now
			closed = append(closed, sym)
		}
	}
	t.mu.Unlock()

	for _, sym := range closed {
		t.log.Info("position closed", "symbol", sym, "source", "reconcile")
		if t.onClosed != nil {
			t.onClosed(sym)
		}
	}
}

// Snapshot returns a copy of all tracked positions.
func (t *PositionTracker) Snapshot() []domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// Poll fetches positions at the given interval and reconciles until ctx is
// cancelled. Fetch failures are logged and retried on the next tick.
func (t *PositionTracker) Poll(ctx context.Context, interval time.Duration, fetch func(context.Context) ([]domain.Position, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			positions, err := fetch(ctx)
			if err != nil {
				t.log.Warn("position poll failed", "error", err)
				continue
			}
			t.Reconcile(positions)
		}
	}
}
