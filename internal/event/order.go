package event

import "time"

const (
	// OrderUpdatesTopic carries the full order aggregate on every state change.
	// Subscription and publish subjects are fixed; the backend does not offer
	// per-call topics.
	OrderUpdatesTopic = "orders.updates"

	EventOrderCreated       = "order.created"
	EventOrderItemsMerged   = "order.items.merged"
	EventOrderStatusChanged = "order.status.changed"
)

// OrderUpdateEvent is the envelope pushed on orders.updates. The order payload
// is always the complete, latest truth for that order id; consumers replace,
// never patch.
type OrderUpdateEvent struct {
	EventType  string       `json:"event_type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Order      OrderPayload `json:"order"`
}

// OrderPayload mirrors the order aggregate as the order service publishes it.
type OrderPayload struct {
	ID        string             `json:"id"`
	TableID   string             `json:"table_id"`
	OutletID  string             `json:"outlet_id,omitempty"`
	Status    string             `json:"status"`
	Items     []OrderItemPayload `json:"items"`
	Total     float64            `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// OrderItemPayload is a single line inside a pushed order.
type OrderItemPayload struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name,omitempty"`
	Quantity   int     `json:"quantity"`
	LinePrice  float64 `json:"line_price"`
}
