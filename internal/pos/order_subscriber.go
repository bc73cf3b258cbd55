package pos

import (
	"context"
	"encoding/json"

	"github.com/aquamarinepk/aqm"

	"github.com/dhabaclub/dhaba/internal/event"
)

// OrderUpdateSubscriber applies pushed order updates to the collection.
// Every event carries the complete latest order; the upsert replaces the
// local entry wholesale, keyed by order id.
type OrderUpdateSubscriber struct {
	collection *OrderCollection
	onUpdate   func(Order)
	logger     aqm.Logger
}

func NewOrderUpdateSubscriber(collection *OrderCollection, onUpdate func(Order), logger aqm.Logger) *OrderUpdateSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &OrderUpdateSubscriber{
		collection: collection,
		onUpdate:   onUpdate,
		logger:     logger,
	}
}

// HandleEvent is the events.HandlerFunc bound to the orders.updates topic.
func (s *OrderUpdateSubscriber) HandleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderUpdateEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Error("failed to unmarshal order update", "error", err)
		return nil
	}

	switch evt.EventType {
	case event.EventOrderCreated, event.EventOrderItemsMerged, event.EventOrderStatusChanged:
	default:
		// Unknown event types are ignored for forward compatibility.
		s.logger.Debug("ignoring unknown event type", "event_type", evt.EventType)
		return nil
	}

	if evt.Order.ID == "" {
		s.logger.Debug("order update missing id, skipping")
		return nil
	}

	order := orderFromPayload(evt.Order)
	s.collection.Upsert(order)
	s.logger.Debug("order upserted from push", "order_id", order.ID, "status", order.Status)

	if s.onUpdate != nil {
		s.onUpdate(order)
	}
	return nil
}

func orderFromPayload(p event.OrderPayload) Order {
	items := make([]OrderItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, OrderItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			LinePrice:  it.LinePrice,
		})
	}
	return Order{
		ID:        p.ID,
		TableID:   p.TableID,
		OutletID:  p.OutletID,
		Status:    p.Status,
		Items:     items,
		Total:     p.Total,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
