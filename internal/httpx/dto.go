package httpx

import (
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/model"
)

type cartItemResp struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

type cartResp struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	Currency  string         `json:"currency"`
	Subtotal  int64          `json:"subtotal"`
	CreatedAt time.Time      `json:"created_at"`
	Items     []cartItemResp `json:"items"`
}

type orderItemResp struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type orderResp struct {
	ID               string          `json:"id"`
	StoreID          string          `json:"store_id"`
	UserID           *string         `json:"user_id,omitempty"`
	Status           string          `json:"status"`
	Currency         string          `json:"currency"`
	Subtotal         int64           `json:"subtotal"`
	Shipping         int64           `json:"shipping"`
	Discount         int64           `json:"discount"`
	Tax              int64           `json:"tax"`
	Total            int64           `json:"total"`
	AddressToID      string          `json:"address_to_id"`
	ShippingOptionID *string         `json:"shipping_option_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []orderItemResp `json:"items"`
}

type statusResp struct {
	Status    model.OrderStatus `json:"status"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type inventoryResp struct {
	VariantID         string    `json:"variant_id"`
	Quantity          int       `json:"quantity"`
	Reserved          int       `json:"reserved"`
	Available         int       `json:"available"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type priceResp struct {
	ID        string     `json:"id"`
	VariantID string     `json:"variant_id"`
	Currency  string     `json:"currency"`
	Amount    int64      `json:"amount"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

func toCartItem(it model.CartItem) cartItemResp {
	return cartItemResp{
		ID:        it.ID,
		Position:  it.Position,
		ProductID: it.ProductID,
		VariantID: it.VariantID,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice,
		CreatedAt: it.CreatedAt,
	}
}

func toCart(c model.Cart) cartResp {
	items := make([]cartItemResp, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, toCartItem(it))
	}
	return cartResp{ID: c.ID, UserID: c.UserID, Currency: c.Currency, Subtotal: c.Subtotal(), CreatedAt: c.CreatedAt, Items: items}
}

func toOrder(o model.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResp{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			SKU:       it.SKU,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return orderResp{
		ID:               o.ID,
		StoreID:          o.StoreID,
		UserID:           o.UserID,
		Status:           string(o.Status),
		Currency:         o.Currency,
		Subtotal:         o.Subtotal,
		Shipping:         o.Shipping,
		Discount:         o.Discount,
		Tax:              o.Tax,
		Total:            o.Total,
		AddressToID:      o.AddressToID,
		ShippingOptionID: o.ShippingOptionID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            items,
	}
}

func toInventory(r model.InventoryRecord) inventoryResp {
	return inventoryResp{
		VariantID:         r.VariantID,
		Quantity:          r.Quantity,
		Reserved:          r.Reserved,
		Available:         r.Available(),
		LowStockThreshold: r.LowStockThreshold,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toPrice(p model.PriceRow) priceResp {
	return priceResp{ID: p.ID, VariantID: p.VariantID, Currency: p.Currency, Amount: p.Amount, ValidFrom: p.ValidFrom, ValidTo: p.ValidTo}
}
