// Package broker abstracts the brokerage execution API and its order-update
// feed, and provides the Alpaca implementation plus an in-memory simulator.
package broker

import (
	"context"
	"errors"

	"sentinel/internal/domain"
)

// ErrOrderNotFound is returned when the brokerage does not know the order ID.
var ErrOrderNotFound = errors.New("order not found")

// OrderRequest describes an order to be submitted.
type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Type          domain.OrderType
	Qty           float64
	LimitPrice    float64 // limit and stop_limit orders
	StopPrice     float64 // stop_limit orders
	ClientOrderID string
}

// Broker is the brokerage execution API. Calls are round-trips to the
// brokerage; implementations retry transient failures on idempotent reads,
// while mutations surface their first error to the caller.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitOrder sends an order to the brokerage and returns the accepted
	// order mirror, including the brokerage-assigned ID.
	SubmitOrder(ctx context.Context, req OrderRequest) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// ReplaceOrder changes the quantity of an open order. The returned
	// mirror carries the order's current identity, which some brokerages
	// reassign on replace.
	ReplaceOrder(ctx context.Context, orderID string, newQty float64) (*domain.Order, error)

	// GetOrder retrieves a single order by its ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOpenOrders returns all non-terminal orders for the symbol, or for
	// every symbol when symbol is empty.
	ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)

	// GetPositions returns all current positions held at the brokerage.
	GetPositions(ctx context.Context) ([]domain.Position, error)
}

// Stream is the brokerage order-update feed. Delivery is at-least-once:
// events for one order arrive in non-decreasing timestamp order, but may be
// redelivered after a reconnect, and intermediate statuses may be missed.
type Stream interface {
	// StreamTradeUpdates delivers order-update events to handler until ctx
	// is cancelled. Implementations reconnect with backoff on transport
	// failure; the method only returns on ctx cancellation.
	StreamTradeUpdates(ctx context.Context, handler func(domain.TradeEvent)) error
}
