package broker

import (
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"sentinel/internal/domain"
)

// normalizeStatus maps Alpaca order status codes onto the engine's
// lifecycle. Unknown non-terminal codes collapse to "working": consumers must
// tolerate missed intermediate statuses anyway, so a conservative live state
// is the safe default.
func normalizeStatus(s string) domain.OrderStatus {
	switch s {
	case "pending_new":
		return domain.OrderStatusSubmitted
	case "new", "accepted", "replaced":
		return domain.OrderStatusAcknowledged
	case "partially_filled", "pending_cancel", "pending_replace", "held", "calculated", "accepted_for_bidding":
		return domain.OrderStatusWorking
	case "filled":
		return domain.OrderStatusFilled
	case "canceled", "expired", "done_for_day":
		return domain.OrderStatusCancelled
	case "rejected", "suspended", "stopped":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusWorking
	}
}

// normalizeType maps Alpaca order types onto the domain set. Types the
// engine never submits (trailing stops, plain stops) pass through verbatim so
// the order cache still mirrors them faithfully.
func normalizeType(t alpaca.OrderType) domain.OrderType {
	switch t {
	case alpaca.Market:
		return domain.OrderTypeMarket
	case alpaca.Limit:
		return domain.OrderTypeLimit
	case alpaca.StopLimit:
		return domain.OrderTypeStopLimit
	default:
		return domain.OrderType(t)
	}
}

// toDomainOrder converts an Alpaca order into the engine's read-only mirror.
func toDomainOrder(o *alpaca.Order) domain.Order {
	out := domain.Order{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          domain.OrderSide(o.Side),
		Type:          normalizeType(o.Type),
		Status:        normalizeStatus(o.Status),
		FilledQty:     o.FilledQty.InexactFloat64(),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Qty != nil {
		out.Qty = o.Qty.InexactFloat64()
	}
	if o.FilledAvgPrice != nil {
		out.FilledAvgPrice = o.FilledAvgPrice.InexactFloat64()
	}
	if o.LimitPrice != nil {
		out.LimitPrice = o.LimitPrice.InexactFloat64()
	}
	if o.StopPrice != nil {
		out.StopPrice = o.StopPrice.InexactFloat64()
	}
	return out
}

// toTradeEvent converts an Alpaca trade update into a normalized event.
func toTradeEvent(tu *alpaca.TradeUpdate) domain.TradeEvent {
	evt := domain.TradeEvent{
		Order:     toDomainOrder(&tu.Order),
		Timestamp: tu.At,
	}
	if tu.Timestamp != nil {
		evt.Timestamp = *tu.Timestamp
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if tu.Qty != nil {
		evt.FillQty = tu.Qty.InexactFloat64()
	} else if evt.Order.Status == domain.OrderStatusFilled {
		evt.FillQty = evt.Order.FilledQty
	}
	if tu.Price != nil {
		evt.FillPrice = tu.Price.InexactFloat64()
	} else {
		evt.FillPrice = evt.Order.FilledAvgPrice
	}
	if tu.PositionQty != nil {
		qty := tu.PositionQty.InexactFloat64()
		evt.PositionQty = &qty
	}
	return evt
}

// decimalPtr converts a float into the pointer form the Alpaca SDK expects.
func decimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
