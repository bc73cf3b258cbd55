package pos

import (
	"fmt"
	"sync"
)

// CartLine is a client-owned, ephemeral line: it exists until submitted or
// explicitly removed, and is authoritative for nothing once submitted.
type CartLine struct {
	MenuItemID string             `json:"menu_item_id"`
	Name       string             `json:"name"`
	Quantity   int                `json:"quantity"`
	UnitPrice  float64            `json:"unit_price"`
	Modifiers  []SelectedModifier `json:"modifiers,omitempty"`
}

// EffectiveUnitPrice is the snapshot price plus the modifier surcharge,
// applied once per line.
func (l *CartLine) EffectiveUnitPrice() float64 {
	return l.UnitPrice + Surcharge(l.Modifiers)
}

// Total is the line amount.
func (l *CartLine) Total() float64 {
	return l.EffectiveUnitPrice() * float64(l.Quantity)
}

// TableSnapshot is the server-reported view of a table: the active order (if
// any) and whether completed-but-unbilled orders exist.
type TableSnapshot struct {
	TableID              string  `json:"table_id"`
	ActiveOrder          *Order  `json:"active_order"`
	HasCompletedOrders   bool    `json:"has_completed_orders"`
	CompletedOrdersCount int     `json:"completed_orders_count"`
	OutletID             string  `json:"outlet_id,omitempty"`
}

// SubmitItem is one outgoing line in an order submission.
type SubmitItem struct {
	MenuItemID string             `json:"menu_item_id"`
	Quantity   int                `json:"quantity"`
	UnitPrice  float64            `json:"unit_price"`
	Modifiers  []SelectedModifier `json:"modifiers,omitempty"`
}

// SubmitOrderRequest is the payload sent to the order service. When the
// table already has an active order the items are additions merged
// server-side; otherwise they open a new order. The client sends the same
// shape either way.
type SubmitOrderRequest struct {
	TableID string       `json:"table_id"`
	Items   []SubmitItem `json:"items"`
}

// PlacementResult is the order service's answer to a submission.
type PlacementResult struct {
	OrderID    string `json:"order_id"`
	IsNewOrder bool   `json:"is_new_order"`
	Message    string `json:"message"`
}

// Cart reconciles three sources of truth for one table: the authoritative
// active order, completed-but-unbilled orders, and the in-progress lines.
// The active order total and the cart total are tracked as two separate
// numbers and only combined for display, so a merge can never double-count.
type Cart struct {
	mu       sync.Mutex
	tableID  string
	lines    []CartLine
	snapshot TableSnapshot
	stale    bool
}

func NewCart(tableID string) *Cart {
	return &Cart{tableID: tableID}
}

func (c *Cart) TableID() string {
	return c.tableID
}

// ApplySnapshot replaces the server-reported table state and clears the
// stale flag.
func (c *Cart) ApplySnapshot(snapshot TableSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = snapshot
	c.stale = false
}

// MarkStale records that local table state can no longer be trusted. Any
// 4xx from order placement implies staleness; the next submission is blocked
// until a fresh snapshot is applied.
func (c *Cart) MarkStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}

func (c *Cart) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// AddLine appends a line after checking quantity sanity.
func (c *Cart) AddLine(line CartLine) error {
	if line.Quantity <= 0 {
		return &ValidationError{Message: "quantity must be greater than zero"}
	}
	if line.MenuItemID == "" {
		return &ValidationError{Message: "menu item is required"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

// RemoveLine drops the line at the given position.
func (c *Cart) RemoveLine(pos int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pos < 0 || pos >= len(c.lines) {
		return &ValidationError{Message: "no such cart line"}
	}
	c.lines = append(c.lines[:pos], c.lines[pos+1:]...)
	return nil
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// CartTotal is the sum of the in-progress lines only.
func (c *Cart) CartTotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartTotalLocked()
}

func (c *Cart) cartTotalLocked() float64 {
	var total float64
	for i := range c.lines {
		total += c.lines[i].Total()
	}
	return round2(total)
}

// ActiveOrderTotal is the authoritative total of the open order, zero when
// the table has none.
func (c *Cart) ActiveOrderTotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot.ActiveOrder == nil {
		return 0
	}
	return c.snapshot.ActiveOrder.Total
}

// RunningTotal combines the two numbers for display only.
func (c *Cart) RunningTotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var active float64
	if c.snapshot.ActiveOrder != nil {
		active = c.snapshot.ActiveOrder.Total
	}
	return round2(active + c.cartTotalLocked())
}

// HasActiveOrder reports whether submissions will merge into an open order.
func (c *Cart) HasActiveOrder() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.ActiveOrder != nil
}

// Snapshot returns the last applied table snapshot.
func (c *Cart) Snapshot() TableSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// BuildSubmission assembles the outgoing request. An empty cart is rejected
// locally with no network call; a stale cart demands a re-fetch first.
func (c *Cart) BuildSubmission() (SubmitOrderRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return SubmitOrderRequest{}, &ValidationError{Message: "cart is empty"}
	}
	if c.stale {
		return SubmitOrderRequest{}, &ConflictError{Message: "table state is stale, refresh before submitting"}
	}

	items := make([]SubmitItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, SubmitItem{
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Modifiers:  line.Modifiers,
		})
	}

	return SubmitOrderRequest{TableID: c.tableID, Items: items}, nil
}

// ApplyPlacement records a successful submission: the cart empties and stops
// being a source of truth, whether the items merged into an existing order
// or opened a new one.
func (c *Cart) ApplyPlacement(result PlacementResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	if !result.IsNewOrder {
		return
	}
	// A new order is now the active one until the next snapshot confirms it.
	c.snapshot.ActiveOrder = &Order{
		ID:      result.OrderID,
		TableID: c.tableID,
		Status:  StatusCreated,
	}
}

// CartStore hands out one cart per table.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*Cart)}
}

// ForTable returns the table's cart, creating it on first use.
func (s *CartStore) ForTable(tableID string) (*Cart, error) {
	if tableID == "" {
		return nil, fmt.Errorf("missing table id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[tableID]
	if !ok {
		cart = NewCart(tableID)
		s.carts[tableID] = cart
	}
	return cart, nil
}

// TableIDs lists the tables that currently have an open cart.
func (s *CartStore) TableIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.carts))
	for id := range s.carts {
		ids = append(ids, id)
	}
	return ids
}

// Drop discards a table's cart, for example when the table session ends.
func (s *CartStore) Drop(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, tableID)
}
