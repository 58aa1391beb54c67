package httpapi

import (
	"sentinel/internal/domain"
	"sentinel/internal/journal"
)

// HealthResponse is the GET /api/health payload.
type HealthResponse struct {
	Status string `json:"status"`
	Broker string `json:"broker"`
}

// PositionsResponse is the GET /api/positions payload.
type PositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// OrderStatusResponse is the GET /api/orders/{id}/status payload.
type OrderStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// SubmitBuyRequest is the POST /api/orders/buy body. LimitPrice of zero
// submits a market order.
type SubmitBuyRequest struct {
	Symbol     string  `json:"symbol"`
	Qty        float64 `json:"qty"`
	LimitPrice float64 `json:"limit_price"`
}

// JournalResponse is the GET /api/journal payload.
type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}
