package engine

import (
	"log/slog"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// PendingBuyRegistry
// ---------------------------------------------------------------------------

// PendingBuyEntry tracks a buy order submitted by this engine until it
// resolves to a terminal status or ages out.
type PendingBuyEntry struct {
	OrderID        string    `json:"order_id"`
	Symbol         string    `json:"symbol"`
	Qty            float64   `json:"qty"`
	ReferencePrice float64   `json:"reference_price"`
	CreatedAt      time.Time `json:"created_at"`
}

// PendingBuyRegistry holds pending buy entries keyed by order ID. The
// synchronizer is its only writer.
type PendingBuyRegistry struct {
	mu      sync.Mutex
	entries map[string]PendingBuyEntry
	ttl     time.Duration
	log     *slog.Logger
}

// NewPendingBuyRegistry creates a registry whose entries go stale after ttl.
func NewPendingBuyRegistry(ttl time.Duration, log *slog.Logger) *PendingBuyRegistry {
	return &PendingBuyRegistry{
		entries: make(map[string]PendingBuyEntry),
		ttl:     ttl,
		log:     log,
	}
}

// Track registers a submitted buy order. Tracking an already-tracked order
// ID is a logged no-op.
func (r *PendingBuyRegistry) Track(orderID, symbol string, qty, referencePrice float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[orderID]; exists {
		r.log.Warn("buy order already tracked", "orderID", orderID, "symbol", symbol)
		return
	}
	r.entries[orderID] = PendingBuyEntry{
		OrderID:        orderID,
		Symbol:         symbol,
		Qty:            qty,
		ReferencePrice: referencePrice,
		CreatedAt:      time.Now(),
	}
}

// Resolve removes and returns the entry for orderID if present. The removal
// is what makes redelivered fill events idempotent: the second delivery finds
// nothing to resolve.
func (r *PendingBuyRegistry) Resolve(orderID string) (PendingBuyEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[orderID]
	if ok {
		delete(r.entries, orderID)
	}
	return e, ok
}

// Contains reports whether orderID is tracked, without removing it.
func (r *PendingBuyRegistry) Contains(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[orderID]
	return ok
}

// IsStale reports whether the entry's age exceeds the staleness threshold at
// the given time.
func (r *PendingBuyRegistry) IsStale(e PendingBuyEntry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > r.ttl
}

// CleanupSymbol removes every entry for the symbol, regardless of age.
// Calling it for a symbol with no entries is a no-op.
func (r *PendingBuyRegistry) CleanupSymbol(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if e.Symbol == symbol {
			delete(r.entries, id)
		}
	}
}

// ReapStale removes and returns all entries stale at the given time. It
// covers buys whose terminal events were silently dropped by the feed.
func (r *PendingBuyRegistry) ReapStale(now time.Time) []PendingBuyEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []PendingBuyEntry
	for id, e := range r.entries {
		if now.Sub(e.CreatedAt) > r.ttl {
			delete(r.entries, id)
			reaped = append(reaped, e)
		}
	}
	return reaped
}

// Snapshot returns a copy of all entries.
func (r *PendingBuyRegistry) Snapshot() []PendingBuyEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PendingBuyEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// ---------------------------------------------------------------------------
// ProtectiveOrderRegistry
// ---------------------------------------------------------------------------

// ProtectiveState tags a protective-order entry's lifecycle stage.
type ProtectiveState string

const (
	// StateAwaitingAck marks a locally-submitted protective order whose
	// brokerage-side acceptance has not yet been confirmed by the feed.
	StateAwaitingAck ProtectiveState = "awaiting_ack"
	// StateConfirmed marks a protective order the feed has acknowledged.
	StateConfirmed ProtectiveState = "confirmed"
)

// ProtectiveEntry maps a symbol to its single tracked protective order.
type ProtectiveEntry struct {
	Symbol    string          `json:"symbol"`
	OrderID   string          `json:"order_id"`
	State     ProtectiveState `json:"state"`
	Qty       float64         `json:"qty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProtectiveOrderRegistry holds at most one protective-order entry per
// symbol, plus the per-symbol in-progress markers that serialize creation.
// The synchronizer is its only writer.
type ProtectiveOrderRegistry struct {
	mu         sync.Mutex
	entries    map[string]ProtectiveEntry // keyed by symbol
	inProgress map[string]struct{}
}

// NewProtectiveOrderRegistry creates an empty registry.
func NewProtectiveOrderRegistry() *ProtectiveOrderRegistry {
	return &ProtectiveOrderRegistry{
		entries:    make(map[string]ProtectiveEntry),
		inProgress: make(map[string]struct{}),
	}
}

// Get returns the entry for symbol, if any.
func (r *ProtectiveOrderRegistry) Get(symbol string) (ProtectiveEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[symbol]
	return e, ok
}

// Put records the protective order for symbol, replacing any previous entry.
// Keying by symbol is what enforces the one-entry-per-symbol invariant.
func (r *ProtectiveOrderRegistry) Put(symbol, orderID string, state ProtectiveState, qty float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[symbol] = ProtectiveEntry{
		Symbol:    symbol,
		OrderID:   orderID,
		State:     state,
		Qty:       qty,
		UpdatedAt: time.Now(),
	}
}

// Promote moves the entry referencing orderID from awaiting-ack to
// confirmed. Promoting an unknown or already-confirmed order is a no-op.
func (r *ProtectiveOrderRegistry) Promote(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sym, e := range r.entries {
		if e.OrderID == orderID && e.State == StateAwaitingAck {
			e.State = StateConfirmed
			e.UpdatedAt = time.Now()
			r.entries[sym] = e
			return true
		}
	}
	return false
}

// RemoveByOrder deletes the entry referencing orderID and clears the
// symbol's in-progress marker if still set.
func (r *ProtectiveOrderRegistry) RemoveByOrder(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sym, e := range r.entries {
		if e.OrderID == orderID {
			delete(r.entries, sym)
			delete(r.inProgress, sym)
			return true
		}
	}
	return false
}

// CleanupSymbol removes the symbol's entry and in-progress marker. Calling
// it for a symbol with no state is a no-op.
func (r *ProtectiveOrderRegistry) CleanupSymbol(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, symbol)
	delete(r.inProgress, symbol)
}

// BeginWork sets the symbol's in-progress marker, gating concurrent
// creation attempts for the same symbol.
func (r *ProtectiveOrderRegistry) BeginWork(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inProgress[symbol] = struct{}{}
}

// EndWork clears the symbol's in-progress marker.
func (r *ProtectiveOrderRegistry) EndWork(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inProgress, symbol)
}

// InProgress reports whether a creation or modification is underway for the
// symbol.
func (r *ProtectiveOrderRegistry) InProgress(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inProgress[symbol]
	return ok
}

// Entries returns a copy of all entries.
func (r *ProtectiveOrderRegistry) Entries() []ProtectiveEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProtectiveEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// InProgressSymbols returns a copy of the symbols currently marked
// in-progress.
func (r *ProtectiveOrderRegistry) InProgressSymbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.inProgress))
	for s := range r.inProgress {
		out = append(out, s)
	}
	return out
}
