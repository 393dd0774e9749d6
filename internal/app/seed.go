package app

import (
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store/memory"
)

// SeedDemo loads a small catalog into a memory store for local runs.
// Prices and stock are set through the API.
func SeedDemo(st *memory.Store) {
	st.PutStore(model.Store{ID: "demo", Name: "Demo Store", DefaultCurrency: "AUD"})
	st.PutShippingOption(model.ShippingOption{ID: "demo-standard", StoreID: "demo", Name: "Standard", Amount: 995})
	st.PutShippingOption(model.ShippingOption{ID: "demo-pickup", StoreID: "demo", Name: "Pickup", Amount: 0})
	st.PutVariant(model.VariantDetail{
		ID: "tee-m-black", ProductID: "tee", SKU: "TEE-M-BLK", ProductTitle: "Classic Tee",
		Options: []model.OptionSelection{{Name: "Size", Value: "M"}, {Name: "Color", Value: "Black"}},
	})
	st.PutVariant(model.VariantDetail{
		ID: "tee-l-black", ProductID: "tee", SKU: "TEE-L-BLK", ProductTitle: "Classic Tee",
		Options: []model.OptionSelection{{Name: "Size", Value: "L"}, {Name: "Color", Value: "Black"}},
	})
}
