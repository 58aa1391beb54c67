// Package sentinel provides a Go SDK for the sentinel-server API.
package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/engine"
	"sentinel/internal/journal"
)

// Client talks to a running sentinel server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8090".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health reports the server's health and active broker backend.
func (c *Client) Health(ctx context.Context) (status, broker string, err error) {
	var out struct {
		Status string `json:"status"`
		Broker string `json:"broker"`
	}
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return "", "", err
	}
	return out.Status, out.Broker, nil
}

// Registry retrieves the pending-buy and protective-order registry state.
func (c *Client) Registry(ctx context.Context) (engine.RegistrySnapshot, error) {
	var out engine.RegistrySnapshot
	err := c.get(ctx, "/api/registry", &out)
	return out, err
}

// Positions retrieves the tracked positions.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var out struct {
		Positions []domain.Position `json:"positions"`
	}
	if err := c.get(ctx, "/api/positions", &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// OrderStatus resolves an order's effective status.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/orders/"+orderID+"/status", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// SubmitBuy submits a buy order. limitPrice of zero submits a market order.
func (c *Client) SubmitBuy(ctx context.Context, symbol string, qty, limitPrice float64) (*domain.Order, error) {
	body, err := json.Marshal(map[string]any{
		"symbol":      symbol,
		"qty":         qty,
		"limit_price": limitPrice,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders/buy", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting buy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}
	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	return &order, nil
}

// Journal retrieves recent journal entries, optionally filtered by symbol.
func (c *Client) Journal(ctx context.Context, symbol string, limit int) ([]journal.Entry, error) {
	path := "/api/journal?limit=" + strconv.Itoa(limit)
	if symbol != "" {
		path += "&symbol=" + symbol
	}
	var out struct {
		Entries []journal.Entry `json:"entries"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
