package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Confirm settles a PENDING order after payment: every reservation becomes a
// permanent deduction and the order becomes PAID. Orders that are no longer
// PENDING are returned unchanged, so duplicate payment callbacks are safe.
func (s *Service) Confirm(ctx context.Context, orderID string) (model.Order, error) {
	return s.settle(ctx, orderID, model.OrderPaid, inventory.OpConfirm)
}

// Cancel abandons a PENDING order and returns its reserved stock. A
// cancelled order is returned unchanged; a paid one cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID string) (model.Order, error) {
	return s.settle(ctx, orderID, model.OrderCancelled, inventory.OpRelease)
}

func (s *Service) settle(ctx context.Context, orderID string, to model.OrderStatus, op inventory.Op) (model.Order, error) {
	ctx, span := s.startSpan(ctx, "orders.settle")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.target_status", string(to)))

	var (
		order   model.Order
		changed bool
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = false
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		order = o
		if Terminal(o.Status) {
			if o.Status == to || to == model.OrderPaid {
				return nil
			}
			return fmt.Errorf("order %s is %s, cannot become %s: %w", orderID, o.Status, to, apperr.ErrInvalidState)
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("order %s %s -> %s: %w", orderID, o.Status, to, apperr.ErrInvalidState)
		}

		for _, it := range o.Items {
			if _, err := s.Ledger.ApplyTx(ctx, tx, it.VariantID, op, it.Quantity); err != nil {
				if apperr.IsClientError(err) {
					return fmt.Errorf("%w: order %s line %s (%s x%d): %w",
						apperr.ErrFulfillmentInconsistency, orderID, it.SKU, op, it.Quantity, err)
				}
				return err
			}
		}
		updatedAt, err := tx.SetOrderStatus(ctx, orderID, to)
		if err != nil {
			return err
		}
		order.Status, order.UpdatedAt = to, updatedAt
		changed = true
		return nil
	})
	s.Metrics.Transition(string(to), err)
	endSpan(span, err)
	if err != nil {
		if errors.Is(err, apperr.ErrFulfillmentInconsistency) {
			s.Logger.Error("fulfillment inconsistency, order left unchanged",
				zap.String("order_id", orderID), zap.String("target", string(to)), zap.Error(err))
		}
		return model.Order{}, err
	}

	if !changed {
		if to == model.OrderPaid && order.Status == model.OrderCancelled {
			s.Logger.Warn("confirm on cancelled order ignored", zap.String("order_id", orderID))
		}
		return order, nil
	}

	s.Logger.Info("order settled",
		zap.String("order_id", order.ID), zap.String("status", string(order.Status)), zap.Int64("total", order.Total))
	switch to {
	case model.OrderPaid:
		s.Events.OrderPaid(ctx, order)
	case model.OrderCancelled:
		s.Events.OrderCancelled(ctx, order)
	}
	s.cacheStatus(ctx, order)
	return order, nil
}
