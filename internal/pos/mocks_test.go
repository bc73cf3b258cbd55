package pos

import (
	"context"
	"sync"

	"github.com/aquamarinepk/aqm/events"
)

// mockBillingAPI lets tests control billing service behavior per call.
type mockBillingAPI struct {
	GenerateOrderBillFunc func(ctx context.Context, orderID, customerID string) (*Bill, error)
	GenerateTableBillFunc func(ctx context.Context, tableID, customerID string) (*Bill, error)
	GetBillItemsFunc      func(ctx context.Context, billID string) (*BillItemsView, error)

	mu         sync.Mutex
	orderCalls int
	tableCalls int
}

func (m *mockBillingAPI) GenerateOrderBill(ctx context.Context, orderID, customerID string) (*Bill, error) {
	m.mu.Lock()
	m.orderCalls++
	m.mu.Unlock()
	if m.GenerateOrderBillFunc != nil {
		return m.GenerateOrderBillFunc(ctx, orderID, customerID)
	}
	return &Bill{ID: "bill-" + orderID, OrderID: orderID}, nil
}

func (m *mockBillingAPI) GenerateTableBill(ctx context.Context, tableID, customerID string) (*Bill, error) {
	m.mu.Lock()
	m.tableCalls++
	m.mu.Unlock()
	if m.GenerateTableBillFunc != nil {
		return m.GenerateTableBillFunc(ctx, tableID, customerID)
	}
	return &Bill{ID: "bill-" + tableID, TableID: tableID}, nil
}

func (m *mockBillingAPI) GetBillItems(ctx context.Context, billID string) (*BillItemsView, error) {
	if m.GetBillItemsFunc != nil {
		return m.GetBillItemsFunc(ctx, billID)
	}
	return &BillItemsView{}, nil
}

func (m *mockBillingAPI) OrderCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderCalls
}

func (m *mockBillingAPI) TableCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableCalls
}

// mockSubscriber records subscriptions and close calls for synchronizer tests.
type mockSubscriber struct {
	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error

	mu         sync.Mutex
	subscribed int
	topics     []string
	closed     int
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	m.mu.Lock()
	m.subscribed++
	m.topics = append(m.topics, topic)
	m.mu.Unlock()
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	return nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockSubscriber) SubscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

func (m *mockSubscriber) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
