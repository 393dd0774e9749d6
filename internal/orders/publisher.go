package orders

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Events emits domain events after their transaction committed. With a nil
// Publisher events are dropped.
type Events struct {
	Publisher Publisher
	Producer  string
	Logger    *zap.Logger
}

func (e *Events) emit(ctx context.Context, topic, eventType, key string, payload any) {
	if e == nil || e.Publisher == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Producer,
		CorrelationID: key,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	headers := append(kafkax.TraceHeaders(ctx),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	e.Publisher.Publish(topic, PartitionKey(key), kafkax.MustMarshal(ev), headers...)
	e.Logger.Debug("event published", zap.String("event_type", eventType), zap.String("key", key))
}

func (e *Events) OrderCreated(ctx context.Context, o model.Order) {
	items := make([]ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemLine{VariantID: it.VariantID, SKU: it.SKU, Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	e.emit(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:  o.ID,
		StoreID:  o.StoreID,
		UserID:   o.UserID,
		Currency: o.Currency,
		Items:    items,
		Subtotal: o.Subtotal,
		Shipping: o.Shipping,
		Total:    o.Total,
	})
}

func (e *Events) OrderPaid(ctx context.Context, o model.Order) {
	e.emit(ctx, TopicOrderPaid, EventOrderPaid, o.ID, OrderStatusPayload{OrderID: o.ID, Status: string(o.Status), Total: o.Total})
}

func (e *Events) OrderCancelled(ctx context.Context, o model.Order) {
	e.emit(ctx, TopicOrderCancelled, EventOrderCancelled, o.ID, OrderStatusPayload{OrderID: o.ID, Status: string(o.Status), Total: o.Total})
}

// StockLow implements inventory.Notifier.
func (e *Events) StockLow(ctx context.Context, rec model.InventoryRecord) {
	e.emit(ctx, TopicStockLow, EventStockLow, rec.VariantID, StockLowPayload{
		VariantID: rec.VariantID,
		Quantity:  rec.Quantity,
		Reserved:  rec.Reserved,
		Available: rec.Available(),
		Threshold: rec.LowStockThreshold,
	})
}
