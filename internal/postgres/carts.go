package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/google/uuid"
)

func (t *pgTx) GetCart(ctx context.Context, id string) (model.Cart, error) {
	var c model.Cart
	err := t.tx.QueryRow(ctx, `SELECT id, user_id, currency, created_at FROM carts WHERE id=$1`, id).
		Scan(&c.ID, &c.UserID, &c.Currency, &c.CreatedAt)
	if err != nil {
		return c, notFound(err, "cart", id)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, unit_price, created_at
		FROM cart_items WHERE cart_id=$1 ORDER BY seq`, id)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		it := model.CartItem{Position: len(c.Items) + 1}
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Quantity, &it.UnitPrice, &it.CreatedAt); err != nil {
			return c, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (t *pgTx) CreateCart(ctx context.Context, c model.Cart) (model.Cart, error) {
	c.ID = uuid.NewString()
	c.Items = nil
	err := t.tx.QueryRow(ctx, `
		INSERT INTO carts(id, user_id, currency) VALUES ($1,$2,$3)
		RETURNING created_at`, c.ID, c.UserID, c.Currency).Scan(&c.CreatedAt)
	return c, err
}

func (t *pgTx) AddCartItem(ctx context.Context, it model.CartItem) (model.CartItem, error) {
	it.ID = uuid.NewString()
	// the subquery sees the rows as of statement start, hence +1
	err := t.tx.QueryRow(ctx, `
		INSERT INTO cart_items(id, cart_id, product_id, variant_id, quantity, unit_price)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, (SELECT count(*) + 1 FROM cart_items WHERE cart_id=$2)`,
		it.ID, it.CartID, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice).
		Scan(&it.CreatedAt, &it.Position)
	if pgCode(err) == codeForeignKeyViolation {
		return model.CartItem{}, fmt.Errorf("cart %s: %w", it.CartID, apperr.ErrNotFound)
	}
	return it, err
}

func (t *pgTx) DeleteCart(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
