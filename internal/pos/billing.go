package pos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
)

// Bill mirrors the invoice issued by the billing service. A bill is
// immutable once generated; corrections require a new bill record, so the
// client never resubmits for an order it already linked.
type Bill struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id,omitempty"`
	TableID       string    `json:"table_id,omitempty"`
	IsCombined    bool      `json:"is_combined_bill"`
	OrderCount    int       `json:"order_count"`
	CustomerID    string    `json:"customer_id,omitempty"`
	Subtotal      float64   `json:"subtotal"`
	CGST          float64   `json:"cgst"`
	SGST          float64   `json:"sgst"`
	IGST          float64   `json:"igst"`
	GrandTotal    float64   `json:"grand_total"`
	IsInterState  bool      `json:"is_inter_state"`
	PlaceOfSupply string    `json:"place_of_supply,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Tax returns the bill's tax view for rendering.
func (b *Bill) Tax() TaxBreakdown {
	return TaxBreakdown{
		Subtotal:      b.Subtotal,
		CGST:          b.CGST,
		SGST:          b.SGST,
		IGST:          b.IGST,
		GrandTotal:    b.GrandTotal,
		IsInterState:  b.IsInterState,
		PlaceOfSupply: b.PlaceOfSupply,
	}
}

// BillItem is one line of a bill's item view.
type BillItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	LinePrice  float64 `json:"line_price"`
}

// BillItemsView is the response of GET /billing/{id}/items. The combined
// flag and order count drive labeling; the client never infers them from
// the item array length.
type BillItemsView struct {
	Items          []BillItem `json:"items"`
	IsCombinedBill bool       `json:"is_combined_bill"`
	OrderCount     int        `json:"order_count"`
}

// Label is the header shown above the item list.
func (v *BillItemsView) Label() string {
	if v.IsCombinedBill {
		return fmt.Sprintf("%d orders combined", v.OrderCount)
	}
	return "Order ID"
}

// BillLinkCache remembers order→bill mappings so the Generate action
// disappears immediately after a bill is issued, closing the double-submit
// window before the list refreshes from the server. Authoritative state
// stays server-side.
type BillLinkCache struct {
	mu    sync.RWMutex
	links map[string]string
}

func NewBillLinkCache() *BillLinkCache {
	return &BillLinkCache{links: make(map[string]string)}
}

func (c *BillLinkCache) Link(orderID, billID string) {
	if orderID == "" || billID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[orderID] = billID
}

func (c *BillLinkCache) Linked(orderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.links[orderID]
	return ok
}

func (c *BillLinkCache) BillIDFor(orderID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	billID, ok := c.links[orderID]
	return billID, ok
}

// CombinedSubtotal sums order totals for a combined bill preview. Tax is
// computed once on this sum, never per-order-then-summed, so rounding
// cannot drift between the preview and the issued bill.
func CombinedSubtotal(orders []Order) float64 {
	var subtotal float64
	for i := range orders {
		subtotal += orders[i].Total
	}
	return round2(subtotal)
}

// billingAPI is the slice of the billing service the aggregator needs.
type billingAPI interface {
	GenerateOrderBill(ctx context.Context, orderID, customerID string) (*Bill, error)
	GenerateTableBill(ctx context.Context, tableID, customerID string) (*Bill, error)
	GetBillItems(ctx context.Context, billID string) (*BillItemsView, error)
}

// BillingService turns COMPLETED, unbilled orders into bills and keeps the
// link cache consistent with what the server answered.
type BillingService struct {
	api    billingAPI
	orders *OrderCollection
	links  *BillLinkCache
	hub    *NoticeHub
	logger aqm.Logger
}

func NewBillingService(api billingAPI, orders *OrderCollection, links *BillLinkCache, hub *NoticeHub, logger aqm.Logger) *BillingService {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &BillingService{
		api:    api,
		orders: orders,
		links:  links,
		hub:    hub,
		logger: logger,
	}
}

// Links exposes the cache for views that hide the Generate action.
func (s *BillingService) Links() *BillLinkCache {
	return s.links
}

// GenerateForOrder requests a bill for a single order, optionally tagged
// with a B2B customer. A locally known link short-circuits before any
// network call; the server response reconciles the cache either way.
func (s *BillingService) GenerateForOrder(ctx context.Context, orderID, customerID string) (*Bill, error) {
	if orderID == "" {
		return nil, fmt.Errorf("missing order id")
	}

	if billID, ok := s.links.BillIDFor(orderID); ok {
		err := &ConflictError{Message: fmt.Sprintf("order already billed (bill %s)", billID)}
		s.notifyError(err)
		return nil, err
	}

	if order, ok := s.orders.Get(orderID); ok && order.Status != StatusCompleted {
		err := &ValidationError{Message: fmt.Sprintf("order %s is not completed", orderID)}
		s.notifyError(err)
		return nil, err
	}

	bill, err := s.api.GenerateOrderBill(ctx, orderID, customerID)
	if err != nil {
		s.notifyError(err)
		return nil, err
	}

	s.links.Link(orderID, bill.ID)
	s.notify(NoticeInfo, fmt.Sprintf("bill %s generated", bill.ID))
	return bill, nil
}

// GenerateForTable requests one combined bill covering every COMPLETED,
// unbilled order on the table. The service aggregates items into a single
// subtotal and taxes that sum once. CREATED and IN_PROGRESS orders on the
// same table stay untouched and unbilled.
func (s *BillingService) GenerateForTable(ctx context.Context, tableID, customerID string) (*Bill, error) {
	if tableID == "" {
		return nil, fmt.Errorf("missing table id")
	}

	eligible := s.orders.CompletedUnbilled(tableID, s.links)
	if len(eligible) == 0 {
		err := &ValidationError{Message: "table has no completed unbilled orders"}
		s.notifyError(err)
		return nil, err
	}

	bill, err := s.api.GenerateTableBill(ctx, tableID, customerID)
	if err != nil {
		s.notifyError(err)
		return nil, err
	}

	for i := range eligible {
		s.links.Link(eligible[i].ID, bill.ID)
	}

	if bill.IsCombined {
		s.notify(NoticeInfo, fmt.Sprintf("combined bill %s covers %d orders", bill.ID, bill.OrderCount))
	} else {
		s.notify(NoticeInfo, fmt.Sprintf("bill %s generated", bill.ID))
	}
	return bill, nil
}

// BillItems fetches the item view for a generated bill.
func (s *BillingService) BillItems(ctx context.Context, billID string) (*BillItemsView, error) {
	if billID == "" {
		return nil, fmt.Errorf("missing bill id")
	}

	view, err := s.api.GetBillItems(ctx, billID)
	if err != nil {
		s.notifyError(err)
		return nil, err
	}
	return view, nil
}

func (s *BillingService) notify(level, message string) {
	if s.hub != nil {
		s.hub.Publish(level, message)
	}
}

func (s *BillingService) notifyError(err error) {
	if s.hub != nil {
		s.hub.NotifyError(err)
	}
}
