package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/pricing"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"go.uber.org/zap"
)

type AddToCartInput struct {
	CartID    string // empty or unknown starts a new cart
	UserID    *string
	Currency  string
	ProductID string
	VariantID string
	Quantity  int
}

// AddToCart appends a line priced at the variant's current price. That price
// is what checkout will charge.
func (s *Service) AddToCart(ctx context.Context, in AddToCartInput) (string, model.CartItem, error) {
	cur, err := pricing.NormalizeCurrency(in.Currency)
	if err != nil {
		return "", model.CartItem{}, err
	}
	if in.Quantity <= 0 {
		return "", model.CartItem{}, fmt.Errorf("quantity %d: %w", in.Quantity, apperr.ErrInvalidInput)
	}
	if in.VariantID == "" || in.ProductID == "" {
		return "", model.CartItem{}, fmt.Errorf("product and variant are required: %w", apperr.ErrInvalidInput)
	}

	var item model.CartItem
	err = s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		v, err := tx.GetVariant(ctx, in.VariantID)
		if err != nil {
			return err
		}
		if v.ProductID != in.ProductID {
			return fmt.Errorf("variant %s of product %s: %w", in.VariantID, in.ProductID, apperr.ErrNotFound)
		}
		// currency mismatch is reported before a missing price
		cart, err := s.openCart(ctx, tx, in.CartID, in.UserID, cur)
		if err != nil {
			return err
		}
		price, err := s.Prices.AtTx(ctx, tx, in.VariantID, cur, s.now())
		if err != nil {
			return err
		}
		item, err = tx.AddCartItem(ctx, model.CartItem{
			CartID:    cart.ID,
			ProductID: in.ProductID,
			VariantID: in.VariantID,
			Quantity:  in.Quantity,
			UnitPrice: price.Amount,
		})
		return err
	})
	if err != nil {
		return "", model.CartItem{}, err
	}
	s.Logger.Info("cart item added",
		zap.String("cart_id", item.CartID),
		zap.String("variant_id", item.VariantID),
		zap.Int("qty", item.Quantity),
		zap.Int64("unit_price", item.UnitPrice),
	)
	return item.CartID, item, nil
}

func (s *Service) openCart(ctx context.Context, tx store.CartTx, cartID string, userID *string, currency string) (model.Cart, error) {
	if cartID != "" {
		cart, err := tx.GetCart(ctx, cartID)
		switch {
		case err == nil:
			if cart.Currency != currency {
				return model.Cart{}, fmt.Errorf("cart %s is in %s, not %s: %w", cartID, cart.Currency, currency, apperr.ErrInvalidInput)
			}
			return cart, nil
		case !errors.Is(err, apperr.ErrNotFound):
			return model.Cart{}, err
		}
	}
	return tx.CreateCart(ctx, model.Cart{UserID: userID, Currency: currency})
}

func (s *Service) GetCart(ctx context.Context, cartID string) (c model.Cart, err error) {
	err = s.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err = tx.GetCart(ctx, cartID)
		return err
	})
	return c, err
}
