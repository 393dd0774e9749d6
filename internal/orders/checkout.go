package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CheckoutInput struct {
	StoreID          string
	CartID           string
	Address          model.Address
	ShippingOptionID *string
	Discount         int64
	Tax              int64
}

type priceDrift struct {
	variantID string
	cart      int64
	live      int64 // -1 when the variant has no live price
}

// Checkout converts a cart into a PENDING order and reserves its stock, all
// in one transaction. Lines keep the unit price captured at add-to-cart time.
// On any failure nothing is written and the cart is left as it was.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (model.Order, error) {
	ctx, span := s.startSpan(ctx, "orders.checkout")
	span.SetAttributes(attribute.String("cart.id", in.CartID), attribute.String("store.id", in.StoreID))
	start := time.Now()

	order, reserved, drifts, err := s.checkout(ctx, in)
	s.Metrics.Checkout(err, float64(time.Since(start).Milliseconds()))
	endSpan(span, err)
	if err != nil {
		s.Logger.Info("checkout rejected", zap.String("cart_id", in.CartID), zap.Error(err))
		return model.Order{}, err
	}

	for _, d := range drifts {
		s.Metrics.PriceDrift()
		s.Logger.Warn("cart price differs from live price",
			zap.String("order_id", order.ID),
			zap.String("variant_id", d.variantID),
			zap.Int64("cart_price", d.cart),
			zap.Int64("live_price", d.live),
		)
	}
	s.Logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("store_id", order.StoreID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total", order.Total),
		zap.String("currency", order.Currency),
	)
	s.Events.OrderCreated(ctx, order)
	s.cacheStatus(ctx, order)
	for _, rec := range reserved {
		s.Ledger.NotifyIfLow(ctx, rec)
	}
	return order, nil
}

func (s *Service) checkout(ctx context.Context, in CheckoutInput) (model.Order, []model.InventoryRecord, []priceDrift, error) {
	if in.StoreID == "" || in.CartID == "" {
		return model.Order{}, nil, nil, fmt.Errorf("store and cart are required: %w", apperr.ErrInvalidInput)
	}
	if in.Discount < 0 || in.Tax < 0 {
		return model.Order{}, nil, nil, fmt.Errorf("discount %d tax %d: %w", in.Discount, in.Tax, apperr.ErrInvalidInput)
	}

	var (
		order    model.Order
		reserved []model.InventoryRecord
		drifts   []priceDrift
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// fn may be re-run on write conflicts
		reserved, drifts = nil, nil

		cart, err := tx.GetCart(ctx, in.CartID)
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("cart %s: %w", in.CartID, apperr.ErrEmptyCart)
		}
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return fmt.Errorf("cart %s: %w", in.CartID, apperr.ErrEmptyCart)
		}
		if _, err := tx.GetStore(ctx, in.StoreID); err != nil {
			return err
		}

		var shipping int64
		if in.ShippingOptionID != nil {
			opt, err := tx.GetShippingOption(ctx, *in.ShippingOptionID)
			if errors.Is(err, apperr.ErrNotFound) || (err == nil && opt.StoreID != in.StoreID) {
				return fmt.Errorf("shipping option %s: %w", *in.ShippingOptionID, apperr.ErrInvalidShippingOption)
			}
			if err != nil {
				return err
			}
			shipping = opt.Amount
		}

		subtotal := cart.Subtotal()
		total := subtotal + shipping - in.Discount + in.Tax
		if total < 0 {
			return fmt.Errorf("discount %d exceeds order value: %w", in.Discount, apperr.ErrInvalidInput)
		}

		addr, err := tx.CreateAddress(ctx, in.Address)
		if err != nil {
			return err
		}
		order, err = tx.CreateOrder(ctx, model.Order{
			StoreID:          in.StoreID,
			UserID:           cart.UserID,
			Status:           model.OrderPending,
			Currency:         cart.Currency,
			Subtotal:         subtotal,
			Shipping:         shipping,
			Discount:         in.Discount,
			Tax:              in.Tax,
			Total:            total,
			AddressToID:      addr.ID,
			ShippingOptionID: in.ShippingOptionID,
		})
		if err != nil {
			return err
		}

		now := s.now()
		for i, it := range cart.Items {
			v, err := tx.GetVariant(ctx, it.VariantID)
			if err != nil {
				return fmt.Errorf("line %d variant missing during checkout: %w", i+1, err)
			}
			line, err := tx.AddOrderItem(ctx, model.OrderItem{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				SKU:       v.SKU,
				Title:     LineTitle(v),
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
			})
			if err != nil {
				return err
			}
			order.Items = append(order.Items, line)

			rec, err := s.Ledger.ReserveTx(ctx, tx, it.VariantID, it.Quantity)
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", i+1, v.SKU, err)
			}
			reserved = append(reserved, rec)

			if live, err := s.Prices.AtTx(ctx, tx, it.VariantID, cart.Currency, now); err != nil {
				drifts = append(drifts, priceDrift{variantID: it.VariantID, cart: it.UnitPrice, live: -1})
			} else if live.Amount != it.UnitPrice {
				drifts = append(drifts, priceDrift{variantID: it.VariantID, cart: it.UnitPrice, live: live.Amount})
			}
		}

		// a concurrent checkout of the same cart deleted it first
		if err := tx.DeleteCart(ctx, cart.ID); errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("cart %s already checked out: %w", cart.ID, apperr.ErrEmptyCart)
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return model.Order{}, nil, nil, err
	}
	return order, reserved, drifts, nil
}

// LineTitle freezes the display title of a variant, e.g.
// "Tee / Size: M / Color: Black".
func LineTitle(v model.VariantDetail) string {
	parts := make([]string, 0, len(v.Options)+1)
	parts = append(parts, v.ProductTitle)
	for _, o := range v.Options {
		parts = append(parts, o.Name+": "+o.Value)
	}
	return strings.Join(parts, " / ")
}
