package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"sentinel/internal/domain"
	"sentinel/internal/util"
)

// Compile-time interface checks.
var _ Broker = (*AlpacaBroker)(nil)
var _ Stream = (*AlpacaBroker)(nil)

// AlpacaBroker implements Broker and Stream using the Alpaca trading API.
// REST calls are paced by a token-bucket limiter; the trade-update stream
// reconnects with capped exponential backoff.
type AlpacaBroker struct {
	client  *alpaca.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaBroker creates an AlpacaBroker configured with the given
// credentials, API endpoint, and REST rate limit.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string, rateLimitPerMin int, log *slog.Logger) *AlpacaBroker {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}

	return &AlpacaBroker{
		client:  alpaca.NewClient(opts),
		limiter: util.NewRateLimiter(rateLimitPerMin, 10),
		log:     log.With("broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string { return "alpaca" }

// SubmitOrder sends an order to the Alpaca API for execution.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	placeReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           decimalPtr(req.Qty),
		Side:          alpaca.Side(req.Side),
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ClientOrderID,
	}
	switch req.Type {
	case domain.OrderTypeMarket:
		placeReq.Type = alpaca.Market
	case domain.OrderTypeLimit:
		placeReq.Type = alpaca.Limit
		placeReq.LimitPrice = decimalPtr(req.LimitPrice)
	case domain.OrderTypeStopLimit:
		placeReq.Type = alpaca.StopLimit
		placeReq.LimitPrice = decimalPtr(req.LimitPrice)
		placeReq.StopPrice = decimalPtr(req.StopPrice)
	default:
		return nil, fmt.Errorf("unsupported order type %q", req.Type)
	}

	o, err := b.client.PlaceOrder(placeReq)
	if err != nil {
		return nil, fmt.Errorf("placing %s %s order for %s: %w", req.Side, req.Type, req.Symbol, err)
	}
	out := toDomainOrder(o)
	return &out, nil
}

// CancelOrder requests cancellation of an open order via the Alpaca API.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := b.client.CancelOrder(orderID); err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	return nil
}

// ReplaceOrder changes the quantity of an open order. Alpaca assigns a new
// order ID on replace; the returned mirror carries it.
func (b *AlpacaBroker) ReplaceOrder(ctx context.Context, orderID string, newQty float64) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	o, err := b.client.ReplaceOrder(orderID, alpaca.ReplaceOrderRequest{
		Qty: decimalPtr(newQty),
	})
	if err != nil {
		return nil, fmt.Errorf("replacing order %s: %w", orderID, err)
	}
	out := toDomainOrder(o)
	return &out, nil
}

// GetOrder retrieves a single order by its ID. Reads are idempotent, so
// transient failures are retried in place.
func (b *AlpacaBroker) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var o *alpaca.Order
	err := util.Retry(ctx, 3, 500*time.Millisecond, 5*time.Second, func() error {
		var err error
		o, err = b.client.GetOrder(orderID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting order %s: %w", orderID, err)
	}
	out := toDomainOrder(o)
	return &out, nil
}

// ListOpenOrders returns all non-terminal orders for the symbol, or for
// every symbol when symbol is empty.
func (b *AlpacaBroker) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := alpaca.GetOrdersRequest{
		Status: "open",
		Limit:  500,
	}
	if symbol != "" {
		req.Symbols = []string{symbol}
	}

	var orders []alpaca.Order
	err := util.Retry(ctx, 3, 500*time.Millisecond, 5*time.Second, func() error {
		var err error
		orders, err = b.client.GetOrders(req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing open orders: %w", err)
	}

	out := make([]domain.Order, 0, len(orders))
	for i := range orders {
		out = append(out, toDomainOrder(&orders[i]))
	}
	return out, nil
}

// GetPositions returns all current positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var positions []alpaca.Position
	err := util.Retry(ctx, 3, 500*time.Millisecond, 5*time.Second, func() error {
		var err error
		positions, err = b.client.GetPositions()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}

	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, domain.Position{
			Symbol:        p.Symbol,
			Qty:           p.Qty.InexactFloat64(),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
		})
	}
	return out, nil
}

// StreamTradeUpdates delivers normalized order-update events to handler
// until ctx is cancelled, reconnecting with backoff on transport failure.
// A reconnect may redeliver events; consumers are idempotent by contract.
func (b *AlpacaBroker) StreamTradeUpdates(ctx context.Context, handler func(domain.TradeEvent)) error {
	backoff := util.NewBackoff(time.Second, 30*time.Second)

	for {
		connectedAt := time.Now()
		err := b.client.StreamTradeUpdates(ctx, func(tu alpaca.TradeUpdate) {
			handler(toTradeEvent(&tu))
		}, alpaca.StreamTradeUpdatesRequest{})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that survived for a while resets the backoff.
		if time.Since(connectedAt) > time.Minute {
			backoff.Reset()
		}

		delay := backoff.Next()
		b.log.Warn("trade-update stream disconnected", "error", err, "reconnect_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
