package pos

import "sync"

// OrderCollection is the client's in-memory view of orders. Only two writers
// exist: the realtime upsert and explicit full refreshes, and both funnel
// through this type so there are no partial-update races.
//
// Upsert keeps insertion order: replacing an existing id keeps its position
// in the slice, so list renders do not reshuffle under the user.
type OrderCollection struct {
	mu     sync.RWMutex
	orders []Order
	index  map[string]int
}

func NewOrderCollection() *OrderCollection {
	return &OrderCollection{
		index: make(map[string]int),
	}
}

// Upsert replaces the entry with the same id in place, or appends when the
// id is new. The incoming order is always the complete latest truth; no
// field-level merging or timestamp comparison happens here. Last writer
// wins by design.
func (c *OrderCollection) Upsert(order Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pos, ok := c.index[order.ID]; ok {
		c.orders[pos] = order
		return
	}

	c.index[order.ID] = len(c.orders)
	c.orders = append(c.orders, order)
}

// ReplaceAll swaps the whole collection for a fresh snapshot. Used by the
// polling backstop and manual refreshes.
func (c *OrderCollection) ReplaceAll(orders []Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orders = make([]Order, len(orders))
	copy(c.orders, orders)

	c.index = make(map[string]int, len(orders))
	for i := range c.orders {
		c.index[c.orders[i].ID] = i
	}
}

// Get returns the order with the given id, if present.
func (c *OrderCollection) Get(id string) (Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.index[id]
	if !ok {
		return Order{}, false
	}
	return c.orders[pos], true
}

// IndexOf returns the slice position for an id, for tests and stable renders.
func (c *OrderCollection) IndexOf(id string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.index[id]
	return pos, ok
}

// Snapshot returns a copy of the collection in render order.
func (c *OrderCollection) Snapshot() []Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Order, len(c.orders))
	copy(out, c.orders)
	return out
}

// ByStatus returns orders currently in the given status, in render order.
func (c *OrderCollection) ByStatus(status string) []Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Order
	for i := range c.orders {
		if c.orders[i].Status == status {
			out = append(out, c.orders[i])
		}
	}
	return out
}

// ByTable returns orders for a table, in render order.
func (c *OrderCollection) ByTable(tableID string) []Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Order
	for i := range c.orders {
		if c.orders[i].TableID == tableID {
			out = append(out, c.orders[i])
		}
	}
	return out
}

// CompletedUnbilled returns the table's COMPLETED orders that have no bill
// linked yet. CREATED and IN_PROGRESS orders are never billable.
func (c *OrderCollection) CompletedUnbilled(tableID string, links *BillLinkCache) []Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Order
	for i := range c.orders {
		o := c.orders[i]
		if o.TableID != tableID || o.Status != StatusCompleted {
			continue
		}
		if links != nil && links.Linked(o.ID) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Len returns the number of orders held.
func (c *OrderCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}
