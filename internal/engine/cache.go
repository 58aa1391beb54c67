package engine

import (
	"sort"
	"sync"

	"sentinel/internal/domain"
)

// OrderCache is a read-mostly mirror of brokerage order state, maintained
// from the trade-update feed. It never initiates brokerage calls; it only
// reflects what the feed (and local submissions) have reported.
type OrderCache struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderCache creates an empty cache.
func NewOrderCache() *OrderCache {
	return &OrderCache{orders: make(map[string]domain.Order)}
}

// Apply merges an order snapshot into the cache. A snapshot strictly older
// than the cached one (by UpdatedAt) is dropped, which keeps reconnect
// redeliveries from rolling state backwards. Returns whether the snapshot
// was applied.
func (c *OrderCache) Apply(o domain.Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.orders[o.ID]; ok && o.UpdatedAt.Before(cur.UpdatedAt) {
		return false
	}
	c.orders[o.ID] = o
	return true
}

// Get returns the cached order by ID, if present.
func (c *OrderCache) Get(orderID string) (domain.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[orderID]
	return o, ok
}

// OpenOrders returns all cached non-terminal orders for the symbol, sorted
// by creation time.
func (c *OrderCache) OpenOrders(symbol string) []domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Order
	for _, o := range c.orders {
		if o.Symbol != symbol || o.Status.IsTerminal() {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FindOpenStopLimitSell returns the symbol's live protective candidate: an
// open SELL order of type stop-limit. When multiple exist (which the
// synchronizer itself never produces) the oldest wins.
func (c *OrderCache) FindOpenStopLimitSell(symbol string) (domain.Order, bool) {
	for _, o := range c.OpenOrders(symbol) {
		if o.Side == domain.OrderSideSell && o.Type == domain.OrderTypeStopLimit {
			return o, true
		}
	}
	return domain.Order{}, false
}

// Len returns the number of cached orders.
func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}
