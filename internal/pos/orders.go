package pos

import (
	"fmt"
	"time"
)

// Order statuses as the order service reports them. Terminal states are
// immutable except for billing linkage.
const (
	StatusCreated    = "CREATED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Order mirrors the aggregate owned by the order service. The client never
// mutates one directly; it requests transitions and receives the next full
// snapshot through the push channel or a refresh.
type Order struct {
	ID        string      `json:"id"`
	TableID   string      `json:"table_id"`
	OutletID  string      `json:"outlet_id,omitempty"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderItem is a single line inside an order.
type OrderItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name,omitempty"`
	Quantity   int     `json:"quantity"`
	LinePrice  float64 `json:"line_price"`
}

// IsTerminal reports whether the order can no longer change.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}

// NextStatus returns the single legal forward transition for a status. The
// client only ever requests this transition; CANCELLED is never driven from
// the counter.
func NextStatus(status string) (string, error) {
	switch status {
	case StatusCreated:
		return StatusInProgress, nil
	case StatusInProgress:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("no forward transition from status %s", status)
	}
}
