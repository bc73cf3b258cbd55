package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aquamarinepk/aqm"
)

// OrderDataAccess talks to the order service. Every request carries the
// session's bearer token; a 401 invalidates credentials wholesale.
type OrderDataAccess struct {
	httpClient *http.Client
	baseURL    string
	sessions   *SessionStore
	logger     aqm.Logger
}

func NewOrderDataAccess(baseURL string, sessions *SessionStore, logger aqm.Logger) *OrderDataAccess {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &OrderDataAccess{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  baseURL,
		sessions: sessions,
		logger:   logger,
	}
}

func (da *OrderDataAccess) ListOrders(ctx context.Context) ([]Order, error) {
	body, err := da.do(ctx, http.MethodGet, "/orders", nil, "list orders")
	if err != nil {
		return nil, err
	}

	var orders []Order
	if err := decodeEnvelope(body, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// CreateOrder opens a new order from the counter.
func (da *OrderDataAccess) CreateOrder(ctx context.Context, req SubmitOrderRequest) (*Order, error) {
	if req.TableID == "" {
		return nil, fmt.Errorf("missing table id")
	}

	body, err := da.do(ctx, http.MethodPost, "/orders/create", req, "create order")
	if err != nil {
		return nil, err
	}

	var order Order
	if err := decodeEnvelope(body, &order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &order, nil
}

// AdvanceOrderStatus requests the single legal next transition for the
// order's current status. The counter never drives CANCELLED.
func (da *OrderDataAccess) AdvanceOrderStatus(ctx context.Context, order Order) (*Order, error) {
	next, err := NextStatus(order.Status)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	path := fmt.Sprintf("/orders/%s/status?status=%s", order.ID, url.QueryEscape(next))
	body, err := da.do(ctx, http.MethodPut, path, nil, "advance order status")
	if err != nil {
		return nil, err
	}

	var updated Order
	if err := decodeEnvelope(body, &updated); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &updated, nil
}

// GetTableSession fetches the customer-facing table snapshot: active order,
// completed-orders flag and count.
func (da *OrderDataAccess) GetTableSession(ctx context.Context, tableID string) (*TableSnapshot, error) {
	if tableID == "" {
		return nil, fmt.Errorf("missing table id")
	}

	path := fmt.Sprintf("/customer/table/%s", tableID)
	body, err := da.do(ctx, http.MethodGet, path, nil, "fetch table session")
	if err != nil {
		return nil, err
	}

	var snapshot TableSnapshot
	if err := decodeEnvelope(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decode table snapshot: %w", err)
	}
	if snapshot.TableID == "" {
		snapshot.TableID = tableID
	}
	return &snapshot, nil
}

// SubmitCustomerOrder sends the cart's submission. The service merges into
// the table's active order or opens a new one and says which it did.
func (da *OrderDataAccess) SubmitCustomerOrder(ctx context.Context, req SubmitOrderRequest) (*PlacementResult, error) {
	if req.TableID == "" {
		return nil, fmt.Errorf("missing table id")
	}

	body, err := da.do(ctx, http.MethodPost, "/customer/order", req, "submit order")
	if err != nil {
		return nil, err
	}

	var result PlacementResult
	if err := decodeEnvelope(body, &result); err != nil {
		return nil, fmt.Errorf("decode placement result: %w", err)
	}
	return &result, nil
}

func (da *OrderDataAccess) do(ctx context.Context, method, path string, payload interface{}, operation string) ([]byte, error) {
	if da == nil || da.baseURL == "" {
		return nil, fmt.Errorf("order client not configured")
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, da.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := da.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := errorFromStatus(operation, resp.StatusCode, body)
		if IsAuthError(mapped) && da.sessions != nil {
			da.sessions.Invalidate("unauthorized")
		}
		da.logger.Debug("order service rejected request", "operation", operation, "status", resp.StatusCode)
		return nil, mapped
	}

	return body, nil
}
