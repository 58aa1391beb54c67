package domain

import (
	"testing"
	"time"
)

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}

	live := []OrderStatus{OrderStatusSubmitted, OrderStatusAcknowledged, OrderStatusWorking, OrderStatusPending}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestTradeEventIsBuyFill(t *testing.T) {
	evt := TradeEvent{
		Order: Order{
			ID:     "ord-1",
			Symbol: "AAPL",
			Side:   OrderSideBuy,
			Type:   OrderTypeLimit,
			Status: OrderStatusFilled,
			Qty:    100,
		},
		FillQty:   100,
		FillPrice: 10.0,
		Timestamp: time.Now(),
	}
	if !evt.IsBuyFill() {
		t.Error("filled buy order should be a buy fill")
	}

	evt.Order.Side = OrderSideSell
	if evt.IsBuyFill() {
		t.Error("filled sell order should not be a buy fill")
	}

	evt.Order.Side = OrderSideBuy
	evt.Order.Status = OrderStatusWorking
	if evt.IsBuyFill() {
		t.Error("working buy order should not be a buy fill")
	}
}

func TestEnumValues(t *testing.T) {
	// The string values are part of the HTTP API and journal schema; keep
	// them stable.
	if OrderSideBuy != "buy" || OrderSideSell != "sell" {
		t.Error("OrderSide constants have unexpected values")
	}
	if OrderTypeStopLimit != "stop_limit" {
		t.Errorf("OrderTypeStopLimit = %q, want %q", OrderTypeStopLimit, "stop_limit")
	}
	if OrderStatusAcknowledged != "acknowledged" {
		t.Errorf("OrderStatusAcknowledged = %q, want %q", OrderStatusAcknowledged, "acknowledged")
	}
}
