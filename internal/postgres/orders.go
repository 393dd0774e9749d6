package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (t *pgTx) CreateAddress(ctx context.Context, a model.Address) (model.Address, error) {
	a.ID = uuid.NewString()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO addresses(id, name, line1, line2, city, region, postal_code, country, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.Name, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, a.Phone)
	return a, err
}

func (t *pgTx) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	o.ID = uuid.NewString()
	o.Items = nil
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(id, store_id, user_id, status, currency, subtotal, shipping, discount, tax, total, address_to_id, shipping_option_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		o.ID, o.StoreID, o.UserID, string(o.Status), o.Currency, o.Subtotal, o.Shipping, o.Discount, o.Tax, o.Total,
		o.AddressToID, o.ShippingOptionID).Scan(&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (t *pgTx) AddOrderItem(ctx context.Context, it model.OrderItem) (model.OrderItem, error) {
	it.ID = uuid.NewString()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items(id, order_id, product_id, variant_id, sku, title, unit_price, quantity)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		it.ID, it.OrderID, it.ProductID, it.VariantID, it.SKU, it.Title, it.UnitPrice, it.Quantity)
	if pgCode(err) == codeForeignKeyViolation {
		return model.OrderItem{}, fmt.Errorf("order %s: %w", it.OrderID, apperr.ErrNotFound)
	}
	return it, err
}

const orderCols = `id, store_id, user_id, status, currency, subtotal, shipping, discount, tax, total,
	address_to_id, shipping_option_id, created_at, updated_at`

func (t *pgTx) GetOrder(ctx context.Context, id string) (model.Order, error) {
	return t.loadOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (model.Order, error) {
	return t.loadOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (t *pgTx) loadOrder(ctx context.Context, q, id string) (model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := t.tx.QueryRow(ctx, q, id).Scan(&o.ID, &o.StoreID, &o.UserID, &status, &o.Currency,
		&o.Subtotal, &o.Shipping, &o.Discount, &o.Tax, &o.Total,
		&o.AddressToID, &o.ShippingOptionID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, notFound(err, "order", id)
	}
	o.Status = model.OrderStatus(status)

	o.Items, err = t.orderItems(ctx, id)
	return o, err
}

func (t *pgTx) orderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, sku, title, unit_price, quantity
		FROM order_items WHERE order_id=$1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.OrderItem, error) {
		var it model.OrderItem
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.SKU, &it.Title, &it.UnitPrice, &it.Quantity)
		return it, err
	})
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id string, status model.OrderStatus) (time.Time, error) {
	var updatedAt time.Time
	err := t.tx.QueryRow(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 RETURNING updated_at`,
		id, string(status)).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, notFound(err, "order", id)
	}
	return updatedAt, nil
}
