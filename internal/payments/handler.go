// Package payments applies payment-gateway outcomes to orders. It consumes
// the gateway's event stream and drives the order state machine.
package payments

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Orders is the part of orders.Service the handler drives.
type Orders interface {
	Confirm(ctx context.Context, orderID string) (model.Order, error)
	Cancel(ctx context.Context, orderID string) (model.Order, error)
}

// Deduper is satisfied by redisx.Dedup.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Handler struct {
	Orders Orders
	Dedup  Deduper
	Logger *zap.Logger
}

// HandlePaymentEvent is installed as the consumer handler. A nil return
// commits the offset: malformed messages and business rejections are logged
// and skipped, anything else is returned so the message is redelivered.
// The event id is marked processed only after the order transition settles.
func (h *Handler) HandlePaymentEvent(ctx context.Context, m kafkago.Message) error {
	ctx = kafkax.ExtractTrace(ctx, m.Headers)
	ctx, span := otel.Tracer("storefront/payments").Start(ctx, "payments.handle")
	defer span.End()

	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		h.Logger.Warn("dropping malformed payment event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	span.SetAttributes(attribute.String("event.type", env.EventType), attribute.String("event.id", env.EventID))

	var (
		orderID string
		apply   func(context.Context, string) (model.Order, error)
	)
	switch env.EventType {
	case orders.EventPaymentSucceeded:
		p, err := kafkax.UnwrapPayload[orders.PaymentSucceededPayload](env.Payload)
		if err != nil {
			h.Logger.Warn("dropping malformed payment event", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		orderID, apply = p.OrderID, h.Orders.Confirm
	case orders.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](env.Payload)
		if err != nil {
			h.Logger.Warn("dropping malformed payment event", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		orderID, apply = p.OrderID, h.Orders.Cancel
	default:
		return nil
	}

	if h.seen(ctx, env.EventID) {
		h.Logger.Debug("duplicate payment event", zap.String("event_id", env.EventID))
		return nil
	}

	o, err := apply(ctx, orderID)
	switch {
	case err == nil:
		h.Logger.Info("payment applied",
			zap.String("event_type", env.EventType),
			zap.String("order_id", orderID),
			zap.String("status", string(o.Status)))
	case errors.Is(err, apperr.ErrFulfillmentInconsistency):
		// left PENDING for an operator; redelivery would fail the same way
		h.Logger.Error("payment left order unsettled",
			zap.String("event_id", env.EventID), zap.String("order_id", orderID), zap.Error(err))
	case apperr.IsClientError(err):
		h.Logger.Warn("payment event rejected",
			zap.String("event_id", env.EventID), zap.String("order_id", orderID), zap.Error(err))
	default:
		span.RecordError(err)
		return err
	}
	h.mark(ctx, env.EventID)
	return nil
}

// seen treats a dedup outage as unseen: Confirm and Cancel are idempotent.
func (h *Handler) seen(ctx context.Context, eventID string) bool {
	if h.Dedup == nil || eventID == "" {
		return false
	}
	ok, err := h.Dedup.Seen(ctx, eventID)
	if err != nil {
		h.Logger.Warn("dedup unavailable", zap.Error(err))
		return false
	}
	return ok
}

func (h *Handler) mark(ctx context.Context, eventID string) {
	if h.Dedup == nil || eventID == "" {
		return
	}
	if err := h.Dedup.Mark(ctx, eventID); err != nil {
		h.Logger.Warn("dedup mark failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
