package pos

import (
	"context"
	"errors"
	"testing"
)

func TestGenerateForOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("linksBillOnSuccess", func(t *testing.T) {
		api := &mockBillingAPI{}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCompleted, Total: 500})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)

		bill, err := svc.GenerateForOrder(ctx, "o1", "")
		if err != nil {
			t.Fatalf("GenerateForOrder() error = %v", err)
		}
		if bill.ID != "bill-o1" {
			t.Errorf("bill.ID = %q, want bill-o1", bill.ID)
		}
		if !svc.Links().Linked("o1") {
			t.Error("order should be linked to its bill")
		}
	})

	t.Run("secondGenerateShortCircuits", func(t *testing.T) {
		api := &mockBillingAPI{}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCompleted})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)

		if _, err := svc.GenerateForOrder(ctx, "o1", ""); err != nil {
			t.Fatalf("GenerateForOrder() error = %v", err)
		}

		// The repeat must fail locally, before the billing service is hit.
		_, err := svc.GenerateForOrder(ctx, "o1", "")
		if !IsConflictError(err) {
			t.Errorf("GenerateForOrder() error = %v, want conflict error", err)
		}
		if api.OrderCalls() != 1 {
			t.Errorf("billing service called %d times, want 1", api.OrderCalls())
		}
	})

	t.Run("rejectsNonCompletedOrder", func(t *testing.T) {
		api := &mockBillingAPI{}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusInProgress})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)

		_, err := svc.GenerateForOrder(ctx, "o1", "")
		if !IsValidationError(err) {
			t.Errorf("GenerateForOrder() error = %v, want validation error", err)
		}
		if api.OrderCalls() != 0 {
			t.Errorf("billing service called %d times, want 0", api.OrderCalls())
		}
	})

	t.Run("doesNotLinkOnFailure", func(t *testing.T) {
		api := &mockBillingAPI{
			GenerateOrderBillFunc: func(ctx context.Context, orderID, customerID string) (*Bill, error) {
				return nil, &ConflictError{Message: "order already billed"}
			},
		}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", Status: StatusCompleted})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)

		if _, err := svc.GenerateForOrder(ctx, "o1", ""); err == nil {
			t.Fatal("GenerateForOrder() should propagate the service error")
		}
		if svc.Links().Linked("o1") {
			t.Error("a failed generate must not link the order")
		}
	})
}

func TestGenerateForTable(t *testing.T) {
	ctx := context.Background()

	t.Run("combinedBillLinksEligibleOrdersOnly", func(t *testing.T) {
		api := &mockBillingAPI{
			GenerateTableBillFunc: func(ctx context.Context, tableID, customerID string) (*Bill, error) {
				return &Bill{ID: "bill-t1", TableID: tableID, IsCombined: true, OrderCount: 2}, nil
			},
		}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCompleted, Total: 300})
		orders.Upsert(Order{ID: "o2", TableID: "t1", Status: StatusCompleted, Total: 200})
		orders.Upsert(Order{ID: "o3", TableID: "t1", Status: StatusCreated, Total: 100})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)

		bill, err := svc.GenerateForTable(ctx, "t1", "")
		if err != nil {
			t.Fatalf("GenerateForTable() error = %v", err)
		}
		if !bill.IsCombined || bill.OrderCount != 2 {
			t.Errorf("bill = %+v, want combined bill covering 2 orders", bill)
		}

		if !svc.Links().Linked("o1") || !svc.Links().Linked("o2") {
			t.Error("both completed orders should link to the combined bill")
		}
		// The in-flight order stays unbilled.
		if svc.Links().Linked("o3") {
			t.Error("a CREATED order must never be linked to a bill")
		}
	})

	t.Run("noEligibleOrders", func(t *testing.T) {
		api := &mockBillingAPI{}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusInProgress})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)

		_, err := svc.GenerateForTable(ctx, "t1", "")
		if !IsValidationError(err) {
			t.Errorf("GenerateForTable() error = %v, want validation error", err)
		}
		if api.TableCalls() != 0 {
			t.Errorf("billing service called %d times, want 0", api.TableCalls())
		}
	})

	t.Run("alreadyBilledOrdersExcluded", func(t *testing.T) {
		api := &mockBillingAPI{}
		orders := NewOrderCollection()
		orders.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCompleted})
		svc := NewBillingService(api, orders, NewBillLinkCache(), nil, nil)
		svc.Links().Link("o1", "bill-old")

		_, err := svc.GenerateForTable(ctx, "t1", "")
		if !IsValidationError(err) {
			t.Errorf("GenerateForTable() error = %v, want validation error when everything is billed", err)
		}
	})
}

func TestBillItems(t *testing.T) {
	api := &mockBillingAPI{
		GetBillItemsFunc: func(ctx context.Context, billID string) (*BillItemsView, error) {
			if billID != "bill-1" {
				return nil, errors.New("not found")
			}
			return &BillItemsView{
				Items:          []BillItem{{MenuItemID: "m1", Quantity: 2, LinePrice: 200}},
				IsCombinedBill: true,
				OrderCount:     3,
			}, nil
		},
	}
	svc := NewBillingService(api, NewOrderCollection(), NewBillLinkCache(), nil, nil)

	view, err := svc.BillItems(context.Background(), "bill-1")
	if err != nil {
		t.Fatalf("BillItems() error = %v", err)
	}
	if !view.IsCombinedBill || view.OrderCount != 3 {
		t.Errorf("view = %+v, want combined with 3 orders", view)
	}
	if view.Label() != "3 orders combined" {
		t.Errorf("Label() = %q, want %q", view.Label(), "3 orders combined")
	}
}

func TestBillItemsViewLabel(t *testing.T) {
	// Labeling follows the flag, never the item array shape.
	single := BillItemsView{
		Items:          []BillItem{{MenuItemID: "m1"}, {MenuItemID: "m2"}, {MenuItemID: "m3"}},
		IsCombinedBill: false,
	}
	if single.Label() != "Order ID" {
		t.Errorf("Label() = %q, want %q", single.Label(), "Order ID")
	}

	combined := BillItemsView{
		Items:          []BillItem{{MenuItemID: "m1"}},
		IsCombinedBill: true,
		OrderCount:     2,
	}
	if combined.Label() != "2 orders combined" {
		t.Errorf("Label() = %q, want %q", combined.Label(), "2 orders combined")
	}
}

func TestCombinedSubtotal(t *testing.T) {
	orders := []Order{
		{ID: "o1", Total: 300.10},
		{ID: "o2", Total: 200.25},
	}
	if got := CombinedSubtotal(orders); got != 500.35 {
		t.Errorf("CombinedSubtotal() = %v, want 500.35", got)
	}
	if got := CombinedSubtotal(nil); got != 0 {
		t.Errorf("CombinedSubtotal(nil) = %v, want 0", got)
	}
}

func TestBillLinkCache(t *testing.T) {
	cache := NewBillLinkCache()

	cache.Link("", "bill-1")
	cache.Link("o1", "")
	if cache.Linked("") || cache.Linked("o1") {
		t.Error("blank ids must not create links")
	}

	cache.Link("o1", "bill-1")
	billID, ok := cache.BillIDFor("o1")
	if !ok || billID != "bill-1" {
		t.Errorf("BillIDFor(o1) = %q, %v, want bill-1, true", billID, ok)
	}
}
