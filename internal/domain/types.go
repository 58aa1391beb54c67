// Package domain defines the core types shared across the sentinel daemon:
// orders, positions, and normalized order-update events.
package domain

import "time"

// OrderSide is the direction of an order.
type OrderSide string

// OrderType is the execution type of an order.
type OrderType string

// OrderStatus is the normalized lifecycle status of an order. Brokerage
// status codes are mapped onto this set at the broker boundary.
type OrderStatus string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"

	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStopLimit OrderType = "stop_limit"

	// Non-terminal statuses.
	OrderStatusSubmitted    OrderStatus = "submitted"
	OrderStatusAcknowledged OrderStatus = "acknowledged"
	OrderStatusWorking      OrderStatus = "working"

	// Terminal statuses.
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"

	// OrderStatusPending is reported for orders tracked locally that the
	// brokerage has not yet resolved to a terminal status. It never appears
	// on an Order mirror; only the engine's status query produces it.
	OrderStatusPending OrderStatus = "pending"
)

// IsTerminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Order is a read-only mirror of a brokerage-owned order.
type Order struct {
	ID             string      `json:"id"`
	ClientOrderID  string      `json:"client_order_id,omitempty"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	Status         OrderStatus `json:"status"`
	Qty            float64     `json:"qty"`
	FilledQty      float64     `json:"filled_qty"`
	FilledAvgPrice float64     `json:"filled_avg_price"`
	LimitPrice     float64     `json:"limit_price,omitempty"`
	StopPrice      float64     `json:"stop_price,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Position is a read-only mirror of a brokerage-owned position. Qty is
// signed; zero or negative means the long position is closed.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// TradeEvent is a normalized order-update event from the brokerage feed.
// Events for the same order ID arrive in non-decreasing Timestamp order, but
// the feed is at-least-once: the same event may be redelivered after a
// reconnect, and intermediate statuses may be missed entirely.
type TradeEvent struct {
	Order     Order
	FillQty   float64 // quantity executed in this event, if a fill
	FillPrice float64 // execution price of this event, if a fill
	// PositionQty is the brokerage-reported position quantity after this
	// event, when the feed includes it. Nil otherwise.
	PositionQty *float64
	Timestamp   time.Time
}

// IsBuyFill reports whether the event is a completed fill of a buy order.
func (e *TradeEvent) IsBuyFill() bool {
	return e.Order.Side == OrderSideBuy && e.Order.Status == OrderStatusFilled
}
