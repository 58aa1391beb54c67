package engine

import (
	"context"
	"log/slog"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/journal"
)

// Reaper periodically sweeps both registries for entries the event flow
// failed to clean up: pending buys past their TTL and protective entries
// whose orders the cache shows as dead or reshaped.
type Reaper struct {
	interval   time.Duration
	pending    *PendingBuyRegistry
	protective *ProtectiveOrderRegistry
	cache      *OrderCache
	journal    journal.Recorder
	log        *slog.Logger

	now func() time.Time
}

// NewReaper creates a reaper sweeping at the given interval.
func NewReaper(interval time.Duration, pending *PendingBuyRegistry, protective *ProtectiveOrderRegistry, cache *OrderCache, rec journal.Recorder, log *slog.Logger) *Reaper {
	return &Reaper{
		interval:   interval,
		pending:    pending,
		protective: protective,
		cache:      cache,
		journal:    rec,
		log:        log.With("component", "reaper"),
		now:        time.Now,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over both registries.
func (r *Reaper) Sweep(ctx context.Context) {
	now := r.now()

	for _, e := range r.pending.ReapStale(now) {
		r.log.Info("reaped stale pending buy", "symbol", e.Symbol, "orderID", e.OrderID,
			"age", now.Sub(e.CreatedAt))
		r.journal.Record(ctx, journal.Entry{
			Time: now, Kind: journal.KindReap, Symbol: e.Symbol,
			OrderID: e.OrderID, Qty: e.Qty, Note: "pending buy past TTL",
		})
	}

	for _, e := range r.protective.Entries() {
		o, ok := r.cache.Get(e.OrderID)
		if !ok {
			// Never seen on the feed. Could be a fresh submission whose first
			// event is still in flight; leave it for the next sweep.
			continue
		}
		var reason string
		switch {
		case o.Status.IsTerminal():
			reason = "order reached terminal status " + string(o.Status)
		case o.Symbol != e.Symbol:
			reason = "order symbol drifted to " + o.Symbol
		case o.Type != domain.OrderTypeStopLimit:
			reason = "order type drifted to " + string(o.Type)
		default:
			continue
		}
		r.protective.RemoveByOrder(e.OrderID)
		r.log.Info("reaped protective entry", "symbol", e.Symbol, "orderID", e.OrderID, "reason", reason)
		r.journal.Record(ctx, journal.Entry{
			Time: now, Kind: journal.KindReap, Symbol: e.Symbol,
			OrderID: e.OrderID, Status: string(o.Status), Note: reason,
		})
	}
}
