// Package memory is an in-process store.Store. Write transactions run one at
// a time against a private copy of the state that replaces the committed
// state only when the transaction function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/google/uuid"
)

type state struct {
	stores    map[string]model.Store
	shipping  map[string]model.ShippingOption
	variants  map[string]model.VariantDetail
	prices    map[string][]model.PriceRow // priceKey(variant, currency)
	inventory map[string]model.InventoryRecord
	carts     map[string]model.Cart
	addresses map[string]model.Address
	orders    map[string]model.Order
}

func newState() *state {
	return &state{
		stores:    map[string]model.Store{},
		shipping:  map[string]model.ShippingOption{},
		variants:  map[string]model.VariantDetail{},
		prices:    map[string][]model.PriceRow{},
		inventory: map[string]model.InventoryRecord{},
		carts:     map[string]model.Cart{},
		addresses: map[string]model.Address{},
		orders:    map[string]model.Order{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.stores {
		c.stores[k] = v
	}
	for k, v := range s.shipping {
		c.shipping[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = append([]model.PriceRow(nil), v...)
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.carts {
		v.Items = append([]model.CartItem(nil), v.Items...)
		c.carts[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]model.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	return c
}

type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithClock replaces the clock used for CreatedAt/UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.RLock()
	snap := s.st.clone()
	s.mu.RUnlock()
	return fn(ctx, &tx{st: snap, now: s.now})
}

// Catalog seeding. The engine never writes catalog rows itself.

func (s *Store) PutStore(st model.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stores[st.ID] = st
}

func (s *Store) PutShippingOption(o model.ShippingOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.shipping[o.ID] = o
}

func (s *Store) PutVariant(v model.VariantDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.variants[v.ID] = v
}

// OrderIDs lists committed orders, for inspection by tests and tooling.
func (s *Store) OrderIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.st.orders))
	for id := range s.st.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type tx struct {
	st  *state
	now func() time.Time
}

func priceKey(variantID, currency string) string { return variantID + "|" + currency }

func (t *tx) GetStore(_ context.Context, id string) (model.Store, error) {
	st, ok := t.st.stores[id]
	if !ok {
		return model.Store{}, fmt.Errorf("store %s: %w", id, apperr.ErrNotFound)
	}
	return st, nil
}

func (t *tx) GetShippingOption(_ context.Context, id string) (model.ShippingOption, error) {
	o, ok := t.st.shipping[id]
	if !ok {
		return model.ShippingOption{}, fmt.Errorf("shipping option %s: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

func (t *tx) GetVariant(_ context.Context, id string) (model.VariantDetail, error) {
	v, ok := t.st.variants[id]
	if !ok {
		return model.VariantDetail{}, fmt.Errorf("variant %s: %w", id, apperr.ErrNotFound)
	}
	return v, nil
}

func (t *tx) ListPrices(_ context.Context, variantID, currency string) ([]model.PriceRow, error) {
	rows := append([]model.PriceRow(nil), t.st.prices[priceKey(variantID, currency)]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ValidFrom.Before(rows[j].ValidFrom) })
	return rows, nil
}

func (t *tx) LockPrices(ctx context.Context, variantID, currency string) ([]model.PriceRow, error) {
	if _, err := t.GetVariant(ctx, variantID); err != nil {
		return nil, err
	}
	return t.ListPrices(ctx, variantID, currency)
}

func (t *tx) ClosePrice(_ context.Context, rowID string, validTo time.Time) error {
	for k, rows := range t.st.prices {
		for i := range rows {
			if rows[i].ID == rowID {
				vt := validTo
				rows[i].ValidTo = &vt
				t.st.prices[k] = rows
				return nil
			}
		}
	}
	return fmt.Errorf("price row %s: %w", rowID, apperr.ErrNotFound)
}

func (t *tx) InsertPrice(_ context.Context, row model.PriceRow) (model.PriceRow, error) {
	key := priceKey(row.VariantID, row.Currency)
	if row.Open() {
		for _, r := range t.st.prices[key] {
			if r.Open() {
				return model.PriceRow{}, fmt.Errorf("open price row already exists for %s: %w", key, apperr.ErrInvalidState)
			}
		}
	}
	row.ID = uuid.NewString()
	t.st.prices[key] = append(t.st.prices[key], row)
	return row, nil
}

func (t *tx) GetInventory(_ context.Context, variantID string) (model.InventoryRecord, error) {
	rec, ok := t.st.inventory[variantID]
	if !ok {
		return model.InventoryRecord{}, fmt.Errorf("inventory %s: %w", variantID, apperr.ErrNotFound)
	}
	return rec, nil
}

// LockInventory needs no extra locking: write transactions are serialized.
func (t *tx) LockInventory(ctx context.Context, variantID string) (model.InventoryRecord, error) {
	return t.GetInventory(ctx, variantID)
}

func (t *tx) InsertInventory(_ context.Context, rec model.InventoryRecord) error {
	if _, ok := t.st.inventory[rec.VariantID]; ok {
		return fmt.Errorf("inventory %s already exists: %w", rec.VariantID, apperr.ErrInvalidInput)
	}
	rec.UpdatedAt = t.now()
	t.st.inventory[rec.VariantID] = rec
	return nil
}

func (t *tx) UpdateInventory(_ context.Context, rec model.InventoryRecord) error {
	if _, ok := t.st.inventory[rec.VariantID]; !ok {
		return fmt.Errorf("inventory %s: %w", rec.VariantID, apperr.ErrNotFound)
	}
	rec.UpdatedAt = t.now()
	t.st.inventory[rec.VariantID] = rec
	return nil
}

func (t *tx) GetCart(_ context.Context, id string) (model.Cart, error) {
	c, ok := t.st.carts[id]
	if !ok {
		return model.Cart{}, fmt.Errorf("cart %s: %w", id, apperr.ErrNotFound)
	}
	c.Items = append([]model.CartItem(nil), c.Items...)
	return c, nil
}

func (t *tx) CreateCart(_ context.Context, c model.Cart) (model.Cart, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = t.now()
	c.Items = nil
	t.st.carts[c.ID] = c
	return c, nil
}

func (t *tx) AddCartItem(_ context.Context, it model.CartItem) (model.CartItem, error) {
	c, ok := t.st.carts[it.CartID]
	if !ok {
		return model.CartItem{}, fmt.Errorf("cart %s: %w", it.CartID, apperr.ErrNotFound)
	}
	it.ID = uuid.NewString()
	it.Position = len(c.Items) + 1
	it.CreatedAt = t.now()
	c.Items = append(c.Items, it)
	t.st.carts[c.ID] = c
	return it, nil
}

func (t *tx) DeleteCart(_ context.Context, id string) error {
	if _, ok := t.st.carts[id]; !ok {
		return fmt.Errorf("cart %s: %w", id, apperr.ErrNotFound)
	}
	delete(t.st.carts, id)
	return nil
}

func (t *tx) CreateAddress(_ context.Context, a model.Address) (model.Address, error) {
	a.ID = uuid.NewString()
	t.st.addresses[a.ID] = a
	return a, nil
}

func (t *tx) CreateOrder(_ context.Context, o model.Order) (model.Order, error) {
	o.ID = uuid.NewString()
	o.CreatedAt = t.now()
	o.UpdatedAt = o.CreatedAt
	o.Items = nil
	t.st.orders[o.ID] = o
	return o, nil
}

func (t *tx) AddOrderItem(_ context.Context, it model.OrderItem) (model.OrderItem, error) {
	o, ok := t.st.orders[it.OrderID]
	if !ok {
		return model.OrderItem{}, fmt.Errorf("order %s: %w", it.OrderID, apperr.ErrNotFound)
	}
	it.ID = uuid.NewString()
	o.Items = append(o.Items, it)
	t.st.orders[o.ID] = o
	return it, nil
}

func (t *tx) GetOrder(_ context.Context, id string) (model.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o, nil
}

func (t *tx) LockOrder(ctx context.Context, id string) (model.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) SetOrderStatus(_ context.Context, id string, status model.OrderStatus) (time.Time, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return time.Time{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = t.now()
	t.st.orders[id] = o
	return o.UpdatedAt, nil
}
