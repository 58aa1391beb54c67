package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/broker"
	"sentinel/internal/domain"
	"sentinel/internal/journal"
)

// BuyFill describes a completed buy execution handed to the synchronizer.
type BuyFill struct {
	OrderID string
	Symbol  string
	Qty     float64
	Price   float64
}

// Synchronizer reacts to buy fills by ensuring exactly one protective
// stop-limit SELL order covers the symbol's position. An existing protective
// order is modified to the merged quantity; otherwise a new one is created
// at offsets below the fill price.
type Synchronizer struct {
	cfg        Config
	broker     broker.Broker
	pending    *PendingBuyRegistry
	protective *ProtectiveOrderRegistry
	locator    *StopLimitLocator
	positions  *PositionTracker
	cache      *OrderCache
	journal    journal.Recorder
	log        *slog.Logger

	now func() time.Time // injectable for staleness tests
}

// NewSynchronizer wires a synchronizer over the engine's shared state.
func NewSynchronizer(cfg Config, b broker.Broker, pending *PendingBuyRegistry, protective *ProtectiveOrderRegistry, locator *StopLimitLocator, positions *PositionTracker, cache *OrderCache, rec journal.Recorder, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		cfg:        cfg,
		broker:     b,
		pending:    pending,
		protective: protective,
		locator:    locator,
		positions:  positions,
		cache:      cache,
		journal:    rec,
		log:        log.With("component", "synchronizer"),
		now:        time.Now,
	}
}

// OnBuyFill runs the synchronization sequence for one buy fill. Redelivered
// fills are harmless: the first delivery consumes the pending-buy entry, so
// later ones find nothing to act on.
func (s *Synchronizer) OnBuyFill(ctx context.Context, fill BuyFill) {
	entry, ok := s.pending.Resolve(fill.OrderID)
	if !ok {
		s.log.Debug("ignoring fill for untracked buy", "orderID", fill.OrderID, "symbol", fill.Symbol)
		return
	}

	if s.pending.IsStale(entry, s.now()) {
		s.log.Warn("abandoning stale buy fill", "orderID", fill.OrderID, "symbol", fill.Symbol,
			"age", s.now().Sub(entry.CreatedAt))
		s.journal.Record(ctx, journal.Entry{
			Time: s.now(), Kind: journal.KindAbort, Symbol: fill.Symbol,
			OrderID: fill.OrderID, Note: "pending buy exceeded staleness threshold",
		})
		return
	}

	// A fill for a symbol we no longer hold means a sell raced ahead of this
	// event. Creating protection now would leave a naked sell order behind.
	if s.positions.Quantity(fill.Symbol) <= 0 {
		s.log.Warn("position already flat, skipping protection", "symbol", fill.Symbol, "orderID", fill.OrderID)
		s.journal.Record(ctx, journal.Entry{
			Time: s.now(), Kind: journal.KindAbort, Symbol: fill.Symbol,
			OrderID: fill.OrderID, Note: "position flat at fill time",
		})
		s.cleanupLeftovers(fill.Symbol)
		return
	}

	// Another fill for this symbol is mid-creation. Wait for it to resolve
	// and merge into its order; on timeout fall through as if no in-progress
	// work existed.
	if s.protective.InProgress(fill.Symbol) {
		if res, ok := s.awaitInProgress(ctx, fill.Symbol); ok {
			if s.modify(ctx, res, fill) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}

	res := s.locator.Find(fill.Symbol)
	if res.Status != LocateNone {
		if s.modify(ctx, res, fill) {
			return
		}
		// Modification failed (order died under us, brokerage error). Fall
		// back to creating fresh protection for this fill.
	}

	s.create(ctx, fill)
}

// awaitInProgress polls until the symbol's in-progress marker clears or the
// locate-wait budget expires. On resolution it returns the freshly located
// protective order, if one materialized.
func (s *Synchronizer) awaitInProgress(ctx context.Context, symbol string) (LocateResult, bool) {
	deadline := s.now().Add(s.cfg.LocateWait)
	ticker := time.NewTicker(s.cfg.LocatePoll)
	defer ticker.Stop()

	for {
		if !s.protective.InProgress(symbol) {
			res := s.locator.Find(symbol)
			return res, res.Status != LocateNone
		}
		if !s.now().Before(deadline) {
			s.log.Warn("in-progress wait timed out", "symbol", symbol, "waited", s.cfg.LocateWait)
			return LocateResult{Status: LocateNone}, false
		}
		select {
		case <-ctx.Done():
			return LocateResult{Status: LocateNone}, false
		case <-ticker.C:
		}
	}
}

// modify grows an existing protective order by the fill quantity. Returns
// false when the brokerage call fails, letting the caller fall back to
// creation.
func (s *Synchronizer) modify(ctx context.Context, res LocateResult, fill BuyFill) bool {
	newQty := res.Qty + fill.Qty

	replaced, err := s.broker.ReplaceOrder(ctx, res.OrderID, newQty)
	if err != nil {
		s.log.Error("protective order modification failed", "symbol", fill.Symbol,
			"orderID", res.OrderID, "newQty", newQty, "error", err)
		s.journal.Record(ctx, journal.Entry{
			Time: s.now(), Kind: journal.KindError, Symbol: fill.Symbol,
			OrderID: res.OrderID, Qty: newQty, Note: "replace failed: " + err.Error(),
		})
		return false
	}

	// Some brokerages assign a new order ID on replace. Track whatever
	// identity came back so later merges and cleanups find it.
	state := StateConfirmed
	if res.Tracked {
		if e, ok := s.protective.Get(fill.Symbol); ok && e.State == StateAwaitingAck && replaced.ID == e.OrderID {
			state = StateAwaitingAck
		}
	}
	s.protective.Put(fill.Symbol, replaced.ID, state, newQty)
	s.cache.Apply(*replaced)

	s.log.Info("protective order modified", "symbol", fill.Symbol,
		"orderID", replaced.ID, "qty", newQty)
	s.journal.Record(ctx, journal.Entry{
		Time: s.now(), Kind: journal.KindModify, Symbol: fill.Symbol,
		OrderID: replaced.ID, Qty: newQty, Price: replaced.StopPrice,
	})
	return true
}

// create places a fresh protective stop-limit SELL for the fill. The
// in-progress marker stays set until the submission call returns, so
// concurrent fills for the symbol serialize behind it.
func (s *Synchronizer) create(ctx context.Context, fill BuyFill) {
	s.protective.BeginWork(fill.Symbol)
	defer s.protective.EndWork(fill.Symbol)

	stopPrice := round2(fill.Price - s.cfg.StopOffset)
	limitPrice := round2(stopPrice - s.cfg.LimitOffset)

	// A fill price inside the combined offsets would produce a zero or
	// negative price leg, which the brokerage rejects. Abort before touching
	// any live order.
	if limitPrice <= 0 || stopPrice <= 0 {
		s.log.Warn("fill price too low for protective offsets", "symbol", fill.Symbol,
			"fillPrice", fill.Price, "stop", stopPrice, "limit", limitPrice)
		s.journal.Record(ctx, journal.Entry{
			Time: s.now(), Kind: journal.KindAbort, Symbol: fill.Symbol,
			OrderID: fill.OrderID, Qty: fill.Qty, Price: fill.Price,
			Note: "fill price below protective offsets",
		})
		return
	}

	// Any other open sell on this symbol would fight the protective order
	// for shares. Clear them out first, best effort.
	for _, o := range s.cache.OpenOrders(fill.Symbol) {
		if o.Side != domain.OrderSideSell {
			continue
		}
		if err := s.broker.CancelOrder(ctx, o.ID); err != nil {
			s.log.Warn("cancel of competing sell failed", "symbol", fill.Symbol, "orderID", o.ID, "error", err)
			continue
		}
		s.journal.Record(ctx, journal.Entry{
			Time: s.now(), Kind: journal.KindCancel, Symbol: fill.Symbol,
			OrderID: o.ID, Note: "competing sell cancelled before protection",
		})
	}

	order, err := s.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:        fill.Symbol,
		Side:          domain.OrderSideSell,
		Type:          domain.OrderTypeStopLimit,
		Qty:           fill.Qty,
		LimitPrice:    limitPrice,
		StopPrice:     stopPrice,
		ClientOrderID: "sentinel-" + uuid.NewString(),
	})
	if err != nil {
		// Nothing is recorded: a speculative entry for an order that may not
		// exist would block future protection attempts for the symbol.
		s.log.Error("protective order submission failed", "symbol", fill.Symbol,
			"qty", fill.Qty, "stop", stopPrice, "limit", limitPrice, "error", err)
		s.journal.Record(ctx, journal.Entry{
			Time: s.now(), Kind: journal.KindError, Symbol: fill.Symbol,
			Qty: fill.Qty, Price: stopPrice, Note: "submit failed: " + err.Error(),
		})
		return
	}

	s.protective.Put(fill.Symbol, order.ID, StateAwaitingAck, fill.Qty)
	s.cache.Apply(*order)

	s.log.Info("protective order created", "symbol", fill.Symbol, "orderID", order.ID,
		"qty", fill.Qty, "stop", stopPrice, "limit", limitPrice)
	s.journal.Record(ctx, journal.Entry{
		Time: s.now(), Kind: journal.KindCreate, Symbol: fill.Symbol,
		OrderID: order.ID, Qty: fill.Qty, Price: stopPrice,
	})
}

// cleanupLeftovers clears registry state for a symbol found flat. Defensive:
// the position-closed path normally does this first.
func (s *Synchronizer) cleanupLeftovers(symbol string) {
	s.pending.CleanupSymbol(symbol)
	s.protective.CleanupSymbol(symbol)
}

// round2 rounds a price to cents. Brokerages reject sub-penny prices on
// stop and limit legs.
func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
