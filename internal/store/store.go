// Package store declares the storage ports the engine depends on. The
// postgres package provides the production implementation and
// store/memory the in-process one.
package store

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/model"
)

// Store runs units of work. InTx commits when fn returns nil and rolls back
// otherwise; implementations may re-run fn on write conflicts, so fn must not
// have side effects outside tx. View runs fn read-only.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Catalog is the read-only collaborator lookup surface.
type Catalog interface {
	GetStore(ctx context.Context, id string) (model.Store, error)
	GetShippingOption(ctx context.Context, id string) (model.ShippingOption, error)
	GetVariant(ctx context.Context, id string) (model.VariantDetail, error)
}

type PriceTx interface {
	// ListPrices returns all rows for the pair ordered by ValidFrom.
	ListPrices(ctx context.Context, variantID, currency string) ([]model.PriceRow, error)
	// LockPrices is ListPrices while holding the variant's price lock until
	// the transaction ends.
	LockPrices(ctx context.Context, variantID, currency string) ([]model.PriceRow, error)
	ClosePrice(ctx context.Context, rowID string, validTo time.Time) error
	InsertPrice(ctx context.Context, row model.PriceRow) (model.PriceRow, error)
}

type InventoryTx interface {
	GetInventory(ctx context.Context, variantID string) (model.InventoryRecord, error)
	// LockInventory reads the record and holds its row lock until the
	// transaction ends.
	LockInventory(ctx context.Context, variantID string) (model.InventoryRecord, error)
	InsertInventory(ctx context.Context, rec model.InventoryRecord) error
	UpdateInventory(ctx context.Context, rec model.InventoryRecord) error
}

type CartTx interface {
	GetCart(ctx context.Context, id string) (model.Cart, error)
	CreateCart(ctx context.Context, c model.Cart) (model.Cart, error)
	AddCartItem(ctx context.Context, it model.CartItem) (model.CartItem, error)
	DeleteCart(ctx context.Context, id string) error
}

type OrderTx interface {
	CreateAddress(ctx context.Context, a model.Address) (model.Address, error)
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	AddOrderItem(ctx context.Context, it model.OrderItem) (model.OrderItem, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	// LockOrder is GetOrder while holding the order row lock.
	LockOrder(ctx context.Context, id string) (model.Order, error)
	// SetOrderStatus returns the new updated_at.
	SetOrderStatus(ctx context.Context, id string, status model.OrderStatus) (time.Time, error)
}

type Tx interface {
	Catalog
	PriceTx
	InventoryTx
	CartTx
	OrderTx
}
