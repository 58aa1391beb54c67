// Package engine keeps protective stop-limit SELL orders synchronized with
// the account's positions. It consumes the brokerage trade-update feed,
// tracks its own buy orders, and for every buy fill ensures a single
// protective order covers the symbol's full position.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/broker"
	"sentinel/internal/domain"
	"sentinel/internal/journal"
)

// Config carries the engine's tunables. Zero values are not usable; callers
// populate it from the config package's defaults.
type Config struct {
	// StopOffset is subtracted from the buy fill price to form the stop
	// trigger of a new protective order.
	StopOffset float64
	// LimitOffset is subtracted from the stop price to form the limit leg.
	LimitOffset float64
	// PendingBuyTTL bounds how long a tracked buy may wait for its fill
	// before synchronization refuses to act on it.
	PendingBuyTTL time.Duration
	// LocateWait bounds how long a fill waits for a concurrent in-progress
	// protective creation on the same symbol.
	LocateWait time.Duration
	// LocatePoll is the poll cadence during LocateWait.
	LocatePoll time.Duration
	// ReapInterval is the registry sweep cadence.
	ReapInterval time.Duration
	// PositionPoll is the brokerage position reconciliation cadence.
	PositionPoll time.Duration
}

// RegistrySnapshot is the observable registry state, served by the HTTP API.
type RegistrySnapshot struct {
	PendingBuys []PendingBuyEntry `json:"pending_buys"`
	Protective  []ProtectiveEntry `json:"protective_orders"`
	InProgress  []string          `json:"in_progress_symbols"`
}

// Engine owns the feed consumers, registries, synchronizer, and reaper.
type Engine struct {
	cfg    Config
	broker broker.Broker
	stream broker.Stream

	cache      *OrderCache
	positions  *PositionTracker
	pending    *PendingBuyRegistry
	protective *ProtectiveOrderRegistry
	sync       *Synchronizer
	reaper     *Reaper
	journal    journal.Recorder
	log        *slog.Logger

	dispatchMu sync.Mutex
	queues     map[string]chan domain.TradeEvent
	workers    sync.WaitGroup
}

// New assembles an engine over the given broker and stream. rec may be
// journal.Nop{} when durable journaling is not wanted.
func New(cfg Config, b broker.Broker, stream broker.Stream, rec journal.Recorder, log *slog.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		broker:  b,
		stream:  stream,
		cache:   NewOrderCache(),
		pending: NewPendingBuyRegistry(cfg.PendingBuyTTL, log),
		journal: rec,
		log:     log.With("component", "engine"),
		queues:  make(map[string]chan domain.TradeEvent),
	}
	e.protective = NewProtectiveOrderRegistry()
	e.positions = NewPositionTracker(e.onPositionClosed, log)
	locator := NewStopLimitLocator(e.protective, e.cache)
	e.sync = NewSynchronizer(cfg, b, e.pending, e.protective, locator, e.positions, e.cache, rec, log)
	e.reaper = NewReaper(cfg.ReapInterval, e.pending, e.protective, e.cache, rec, log)
	return e
}

// Run seeds state from the brokerage, then consumes the trade-update feed
// until ctx is cancelled. It blocks for the engine's lifetime.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.seed(ctx); err != nil {
		return fmt.Errorf("seeding engine state: %w", err)
	}

	go e.positions.Poll(ctx, e.cfg.PositionPoll, e.broker.GetPositions)
	go e.reaper.Run(ctx)

	err := e.stream.StreamTradeUpdates(ctx, e.dispatch)

	e.closeQueues()
	e.workers.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// seed primes the position view and order cache so a restart does not
// mistake existing holdings for closures or miss live protective orders.
func (e *Engine) seed(ctx context.Context) error {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	e.positions.Reconcile(positions)

	open, err := e.broker.ListOpenOrders(ctx, "")
	if err != nil {
		return fmt.Errorf("listing open orders: %w", err)
	}
	for _, o := range open {
		e.cache.Apply(o)
	}

	e.log.Info("engine state seeded", "positions", len(positions), "openOrders", len(open))
	return nil
}

// dispatch routes an event to its symbol's worker. Each symbol is processed
// by one goroutine in arrival order; distinct symbols proceed concurrently.
func (e *Engine) dispatch(evt domain.TradeEvent) {
	symbol := evt.Order.Symbol
	if symbol == "" {
		e.log.Warn("dropping event without symbol", "orderID", evt.Order.ID)
		return
	}

	e.dispatchMu.Lock()
	q, ok := e.queues[symbol]
	if !ok {
		q = make(chan domain.TradeEvent, 64)
		e.queues[symbol] = q
		e.workers.Add(1)
		go e.worker(q)
	}
	e.dispatchMu.Unlock()

	q <- evt
}

func (e *Engine) worker(q chan domain.TradeEvent) {
	defer e.workers.Done()
	for evt := range q {
		e.handleEvent(context.Background(), evt)
	}
}

func (e *Engine) closeQueues() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	for _, q := range e.queues {
		close(q)
	}
	e.queues = make(map[string]chan domain.TradeEvent)
}

// handleEvent applies one trade update: mirror the order, fold in the
// position quantity, then react to lifecycle transitions.
func (e *Engine) handleEvent(ctx context.Context, evt domain.TradeEvent) {
	o := evt.Order
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = evt.Timestamp
	}
	fresh := e.cache.Apply(o)

	if evt.PositionQty != nil {
		e.positions.ApplyQty(o.Symbol, *evt.PositionQty, o.UpdatedAt)
	}

	if !fresh {
		e.log.Debug("dropping stale order snapshot", "orderID", o.ID, "status", o.Status)
		return
	}

	switch o.Side {
	case domain.OrderSideBuy:
		e.handleBuyEvent(ctx, evt, o)
	case domain.OrderSideSell:
		e.handleSellEvent(ctx, o)
	}
}

func (e *Engine) handleBuyEvent(ctx context.Context, evt domain.TradeEvent, o domain.Order) {
	switch o.Status {
	case domain.OrderStatusFilled:
		price := evt.FillPrice
		if price == 0 {
			price = o.FilledAvgPrice
		}
		qty := evt.FillQty
		if qty == 0 {
			qty = o.FilledQty
		}
		e.sync.OnBuyFill(ctx, BuyFill{
			OrderID: o.ID,
			Symbol:  o.Symbol,
			Qty:     qty,
			Price:   price,
		})
	case domain.OrderStatusCancelled, domain.OrderStatusRejected:
		if _, ok := e.pending.Resolve(o.ID); ok {
			e.log.Info("tracked buy ended without fill", "orderID", o.ID,
				"symbol", o.Symbol, "status", o.Status)
		}
	}
}

func (e *Engine) handleSellEvent(ctx context.Context, o domain.Order) {
	if o.Type != domain.OrderTypeStopLimit {
		return
	}
	switch o.Status {
	case domain.OrderStatusAcknowledged, domain.OrderStatusWorking:
		if e.protective.Promote(o.ID) {
			e.log.Info("protective order confirmed", "symbol", o.Symbol, "orderID", o.ID)
			e.journal.Record(ctx, journal.Entry{
				Time: time.Now(), Kind: journal.KindConfirm, Symbol: o.Symbol,
				OrderID: o.ID, Status: string(o.Status),
			})
		}
	case domain.OrderStatusCancelled, domain.OrderStatusRejected, domain.OrderStatusFilled:
		if e.protective.RemoveByOrder(o.ID) {
			e.log.Info("protective order retired", "symbol", o.Symbol,
				"orderID", o.ID, "status", o.Status)
		}
	}
}

// onPositionClosed clears all per-symbol state once a position is flat. A
// protective order still awaiting its ack gets a best-effort cancel; the
// outcome never blocks the cleanup.
func (e *Engine) onPositionClosed(symbol string) {
	if entry, ok := e.protective.Get(symbol); ok && entry.State == StateAwaitingAck {
		go func(orderID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.broker.CancelOrder(ctx, orderID); err != nil {
				e.log.Warn("cancel of orphaned protective order failed",
					"symbol", symbol, "orderID", orderID, "error", err)
			}
		}(entry.OrderID)
	}

	e.pending.CleanupSymbol(symbol)
	e.protective.CleanupSymbol(symbol)
	e.journal.Record(context.Background(), journal.Entry{
		Time: time.Now(), Kind: journal.KindCleanup, Symbol: symbol,
		Note: "position closed, symbol state cleared",
	})
}

// SubmitBuy places a buy order and tracks it for protective synchronization
// once it fills. limitPrice of zero submits a market order.
func (e *Engine) SubmitBuy(ctx context.Context, symbol string, qty, limitPrice float64) (*domain.Order, error) {
	req := broker.OrderRequest{
		Symbol:        symbol,
		Side:          domain.OrderSideBuy,
		Qty:           qty,
		ClientOrderID: "sentinel-" + uuid.NewString(),
	}
	if limitPrice > 0 {
		req.Type = domain.OrderTypeLimit
		req.LimitPrice = limitPrice
	} else {
		req.Type = domain.OrderTypeMarket
	}

	order, err := e.broker.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submitting buy for %s: %w", symbol, err)
	}

	e.pending.Track(order.ID, symbol, qty, limitPrice)
	e.cache.Apply(*order)

	e.log.Info("buy submitted", "symbol", symbol, "orderID", order.ID, "qty", qty, "limit", limitPrice)
	e.journal.Record(ctx, journal.Entry{
		Time: time.Now(), Kind: journal.KindBuy, Symbol: symbol,
		OrderID: order.ID, Qty: qty, Price: limitPrice,
	})
	return order, nil
}

// OrderStatus resolves an order's effective status: "pending" while the
// engine still tracks it and the brokerage has not reported a terminal
// state, otherwise the brokerage-reported status.
func (e *Engine) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	o, ok := e.cache.Get(orderID)
	if !ok {
		fetched, err := e.broker.GetOrder(ctx, orderID)
		if err != nil {
			return "", fmt.Errorf("resolving order %s: %w", orderID, err)
		}
		o = *fetched
		e.cache.Apply(o)
	}

	if e.tracked(orderID) && !o.Status.IsTerminal() {
		return domain.OrderStatusPending, nil
	}
	return o.Status, nil
}

func (e *Engine) tracked(orderID string) bool {
	if e.pending.Contains(orderID) {
		return true
	}
	for _, p := range e.protective.Entries() {
		if p.OrderID == orderID {
			return true
		}
	}
	return false
}

// Snapshot returns the current registry state.
func (e *Engine) Snapshot() RegistrySnapshot {
	return RegistrySnapshot{
		PendingBuys: e.pending.Snapshot(),
		Protective:  e.protective.Entries(),
		InProgress:  e.protective.InProgressSymbols(),
	}
}

// Positions returns the tracked position view.
func (e *Engine) Positions() []domain.Position {
	return e.positions.Snapshot()
}

// BrokerName reports which broker backend the engine runs against.
func (e *Engine) BrokerName() string { return e.broker.Name() }
