package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/domain"
)

// Compile-time interface checks.
var _ Broker = (*SimulatorBroker)(nil)
var _ Stream = (*SimulatorBroker)(nil)

// ReplaceCall records a single ReplaceOrder invocation on the simulator.
type ReplaceCall struct {
	OrderID string
	NewQty  float64
}

// SimulatorBroker implements Broker and Stream entirely in memory. It is the
// test double for the engine: tests script positions, inject order-update
// events, force call failures, and inspect what the engine asked for.
type SimulatorBroker struct {
	mu        sync.Mutex
	nextID    int
	orders    map[string]domain.Order
	positions map[string]domain.Position

	events chan domain.TradeEvent

	// Scripted failures. When set, the corresponding call returns the error
	// without touching state.
	submitErr  error
	replaceErr error
	cancelErr  error

	submitted    []domain.Order
	replaceCalls []ReplaceCall
	cancelled    []string
}

// NewSimulatorBroker creates a SimulatorBroker with empty state.
func NewSimulatorBroker() *SimulatorBroker {
	return &SimulatorBroker{
		orders:    make(map[string]domain.Order),
		positions: make(map[string]domain.Position),
		events:    make(chan domain.TradeEvent, 256),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string { return "simulator" }

// SubmitOrder records the order and returns it in acknowledged state with a
// simulator-assigned ID.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, req OrderRequest) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.submitErr != nil {
		return nil, b.submitErr
	}

	b.nextID++
	now := time.Now()
	order := domain.Order{
		ID:            fmt.Sprintf("sim-%d", b.nextID),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        domain.OrderStatusAcknowledged,
		Qty:           req.Qty,
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.orders[order.ID] = order
	b.submitted = append(b.submitted, order)
	return &order, nil
}

// CancelOrder marks the order cancelled and records the request.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelErr != nil {
		return b.cancelErr
	}

	o, ok := b.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	b.orders[orderID] = o
	b.cancelled = append(b.cancelled, orderID)
	return nil
}

// ReplaceOrder updates the order's quantity in place. Unlike Alpaca, the
// simulator keeps the order ID stable, which is the simpler of the two
// behaviors callers must handle.
func (b *SimulatorBroker) ReplaceOrder(_ context.Context, orderID string, newQty float64) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.replaceErr != nil {
		return nil, b.replaceErr
	}

	o, ok := b.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Qty = newQty
	o.UpdatedAt = time.Now()
	b.orders[orderID] = o
	b.replaceCalls = append(b.replaceCalls, ReplaceCall{OrderID: orderID, NewQty: newQty})
	return &o, nil
}

// GetOrder retrieves a single order by its ID.
func (b *SimulatorBroker) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// ListOpenOrders returns all non-terminal orders, optionally filtered by
// symbol.
func (b *SimulatorBroker) ListOpenOrders(_ context.Context, symbol string) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.Order
	for _, o := range b.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// GetPositions returns all scripted positions.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

// StreamTradeUpdates delivers injected events to handler until ctx is
// cancelled.
func (b *SimulatorBroker) StreamTradeUpdates(ctx context.Context, handler func(domain.TradeEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-b.events:
			handler(evt)
		}
	}
}

// ---------------------------------------------------------------------------
// Test controls
// ---------------------------------------------------------------------------

// SetPosition scripts the position reported for a symbol.
func (b *SimulatorBroker) SetPosition(symbol string, qty, avgPrice float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty == 0 {
		delete(b.positions, symbol)
		return
	}
	b.positions[symbol] = domain.Position{Symbol: symbol, Qty: qty, AvgEntryPrice: avgPrice}
}

// FailSubmits makes subsequent SubmitOrder calls return err (nil to clear).
func (b *SimulatorBroker) FailSubmits(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitErr = err
}

// FailReplaces makes subsequent ReplaceOrder calls return err (nil to clear).
func (b *SimulatorBroker) FailReplaces(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replaceErr = err
}

// FailCancels makes subsequent CancelOrder calls return err (nil to clear).
func (b *SimulatorBroker) FailCancels(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelErr = err
}

// Emit injects an order-update event into the stream.
func (b *SimulatorBroker) Emit(evt domain.TradeEvent) {
	b.events <- evt
}

// Submitted returns a copy of every order submitted so far.
func (b *SimulatorBroker) Submitted() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Order, len(b.submitted))
	copy(out, b.submitted)
	return out
}

// ReplaceCalls returns a copy of every replace request so far.
func (b *SimulatorBroker) ReplaceCalls() []ReplaceCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ReplaceCall, len(b.replaceCalls))
	copy(out, b.replaceCalls)
	return out
}

// Cancelled returns a copy of every cancelled order ID so far.
func (b *SimulatorBroker) Cancelled() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.cancelled))
	copy(out, b.cancelled)
	return out
}
