package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type pgTx struct{ tx pgx.Tx }

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) GetStore(ctx context.Context, id string) (model.Store, error) {
	var s model.Store
	err := t.tx.QueryRow(ctx, `SELECT id, name, default_currency FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.DefaultCurrency)
	return s, notFound(err, "store", id)
}

func (t *pgTx) GetShippingOption(ctx context.Context, id string) (model.ShippingOption, error) {
	var o model.ShippingOption
	err := t.tx.QueryRow(ctx, `SELECT id, store_id, name, amount FROM shipping_options WHERE id=$1`, id).
		Scan(&o.ID, &o.StoreID, &o.Name, &o.Amount)
	return o, notFound(err, "shipping option", id)
}

func (t *pgTx) GetVariant(ctx context.Context, id string) (model.VariantDetail, error) {
	var v model.VariantDetail
	err := t.tx.QueryRow(ctx, `
		SELECT v.id, v.product_id, v.sku, p.title
		FROM product_variants v JOIN products p ON p.id = v.product_id
		WHERE v.id=$1`, id).Scan(&v.ID, &v.ProductID, &v.SKU, &v.ProductTitle)
	if err != nil {
		return v, notFound(err, "variant", id)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT o.name, ov.value
		FROM product_variant_option_values pvov
		JOIN option_values ov ON ov.id = pvov.option_value_id
		JOIN product_options o ON o.id = ov.option_id
		WHERE pvov.variant_id=$1
		ORDER BY o.position, o.name`, id)
	if err != nil {
		return v, err
	}
	defer rows.Close()
	for rows.Next() {
		var sel model.OptionSelection
		if err := rows.Scan(&sel.Name, &sel.Value); err != nil {
			return v, err
		}
		v.Options = append(v.Options, sel)
	}
	return v, rows.Err()
}

const priceCols = `id, variant_id, currency, amount, valid_from, valid_to`

func (t *pgTx) ListPrices(ctx context.Context, variantID, currency string) ([]model.PriceRow, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+priceCols+` FROM product_variant_prices
		WHERE variant_id=$1 AND currency=$2 ORDER BY valid_from`, variantID, currency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceRow
	for rows.Next() {
		var r model.PriceRow
		if err := rows.Scan(&r.ID, &r.VariantID, &r.Currency, &r.Amount, &r.ValidFrom, &r.ValidTo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LockPrices locks the variant row; every price writer for the variant goes
// through it, so the series cannot change until the transaction ends.
func (t *pgTx) LockPrices(ctx context.Context, variantID, currency string) ([]model.PriceRow, error) {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM product_variants WHERE id=$1 FOR UPDATE`, variantID).Scan(&id)
	if err != nil {
		return nil, notFound(err, "variant", variantID)
	}
	return t.ListPrices(ctx, variantID, currency)
}

func (t *pgTx) ClosePrice(ctx context.Context, rowID string, validTo time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE product_variant_prices SET valid_to=$2 WHERE id=$1 AND valid_to IS NULL`, rowID, validTo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open price row %s: %w", rowID, apperr.ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertPrice(ctx context.Context, row model.PriceRow) (model.PriceRow, error) {
	row.ID = uuid.NewString()
	_, err := t.tx.Exec(ctx, `INSERT INTO product_variant_prices(`+priceCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		row.ID, row.VariantID, row.Currency, row.Amount, row.ValidFrom, row.ValidTo)
	switch pgCode(err) {
	case "":
		if err != nil {
			return model.PriceRow{}, err
		}
		return row, nil
	case codeUniqueViolation:
		return model.PriceRow{}, fmt.Errorf("open price row already exists for %s/%s: %w", row.VariantID, row.Currency, apperr.ErrInvalidState)
	case codeForeignKeyViolation:
		return model.PriceRow{}, fmt.Errorf("variant %s: %w", row.VariantID, apperr.ErrNotFound)
	default:
		return model.PriceRow{}, err
	}
}

const inventoryCols = `variant_id, quantity, reserved, low_stock_threshold, updated_at`

func scanInventory(row pgx.Row) (model.InventoryRecord, error) {
	var r model.InventoryRecord
	err := row.Scan(&r.VariantID, &r.Quantity, &r.Reserved, &r.LowStockThreshold, &r.UpdatedAt)
	return r, err
}

func (t *pgTx) GetInventory(ctx context.Context, variantID string) (model.InventoryRecord, error) {
	r, err := scanInventory(t.tx.QueryRow(ctx, `SELECT `+inventoryCols+` FROM variant_inventory WHERE variant_id=$1`, variantID))
	return r, notFound(err, "inventory", variantID)
}

func (t *pgTx) LockInventory(ctx context.Context, variantID string) (model.InventoryRecord, error) {
	r, err := scanInventory(t.tx.QueryRow(ctx, `SELECT `+inventoryCols+` FROM variant_inventory WHERE variant_id=$1 FOR UPDATE`, variantID))
	return r, notFound(err, "inventory", variantID)
}

func (t *pgTx) InsertInventory(ctx context.Context, rec model.InventoryRecord) error {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO variant_inventory(variant_id, quantity, reserved, low_stock_threshold)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (variant_id) DO NOTHING`,
		rec.VariantID, rec.Quantity, rec.Reserved, rec.LowStockThreshold)
	if pgCode(err) == codeForeignKeyViolation {
		return fmt.Errorf("variant %s: %w", rec.VariantID, apperr.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory %s already exists: %w", rec.VariantID, apperr.ErrInvalidInput)
	}
	return nil
}

func (t *pgTx) UpdateInventory(ctx context.Context, rec model.InventoryRecord) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE variant_inventory SET quantity=$2, reserved=$3, updated_at=now()
		WHERE variant_id=$1`, rec.VariantID, rec.Quantity, rec.Reserved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory %s: %w", rec.VariantID, apperr.ErrNotFound)
	}
	return nil
}
