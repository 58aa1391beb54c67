package engine

import (
	"sentinel/internal/domain"
)

// LocateStatus classifies the outcome of a protective-order search.
type LocateStatus string

const (
	// LocateNone means no live protective order exists for the symbol.
	LocateNone LocateStatus = "none"
	// LocateConfirmed means a brokerage-confirmed protective order exists.
	LocateConfirmed LocateStatus = "confirmed"
	// LocateAwaitingAck means a protective order was submitted but its
	// acceptance has not been seen on the feed yet.
	LocateAwaitingAck LocateStatus = "awaiting_ack"
)

// LocateResult is the richest protective-order match found for a symbol.
type LocateResult struct {
	Status  LocateStatus
	OrderID string
	Qty     float64
	Tracked bool // whether the registry (vs only the cache) knows the order
}

// StopLimitLocator finds the existing protective stop-limit SELL order for a
// symbol, if any. It consults the registry first and falls back to scanning
// the order cache, which covers orders the registry missed after a restart
// or that were placed manually.
type StopLimitLocator struct {
	registry *ProtectiveOrderRegistry
	cache    *OrderCache
}

// NewStopLimitLocator creates a locator over the given registry and cache.
func NewStopLimitLocator(registry *ProtectiveOrderRegistry, cache *OrderCache) *StopLimitLocator {
	return &StopLimitLocator{registry: registry, cache: cache}
}

// Find returns the richest protective-order match for symbol. Registry
// entries win over cache-only matches; a registry entry whose order the
// cache shows as terminal is treated as gone.
func (l *StopLimitLocator) Find(symbol string) LocateResult {
	if e, ok := l.registry.Get(symbol); ok {
		qty := e.Qty
		stale := false
		if o, cached := l.cache.Get(e.OrderID); cached {
			if o.Status.IsTerminal() {
				stale = true
			} else {
				qty = o.Qty
			}
		}
		if !stale {
			status := LocateAwaitingAck
			if e.State == StateConfirmed {
				status = LocateConfirmed
			}
			return LocateResult{Status: status, OrderID: e.OrderID, Qty: qty, Tracked: true}
		}
	}

	if o, ok := l.cache.FindOpenStopLimitSell(symbol); ok {
		status := LocateConfirmed
		if o.Status == domain.OrderStatusSubmitted {
			status = LocateAwaitingAck
		}
		return LocateResult{Status: status, OrderID: o.ID, Qty: o.Qty}
	}

	return LocateResult{Status: LocateNone}
}
