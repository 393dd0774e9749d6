package app

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainer_MemoryDriverServesDemoCatalog(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, config.Config{StoreDriver: "memory", LogLevel: "error", ServiceName: "container-test"}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	assert.Nil(t, c.Producer)
	assert.Nil(t, c.StatusCache())

	_, err = c.Prices.SetPrice(ctx, "tee-m-black", "AUD", 3500, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = c.Ledger.Open(ctx, "tee-m-black", 5, 1)
	require.NoError(t, err)

	cartID, _, err := c.Orders.AddToCart(ctx, orders.AddToCartInput{
		Currency: "AUD", ProductID: "tee", VariantID: "tee-m-black", Quantity: 1,
	})
	require.NoError(t, err)

	ship := "demo-pickup"
	o, err := c.Orders.Checkout(ctx, orders.CheckoutInput{
		StoreID:          "demo",
		CartID:           cartID,
		ShippingOptionID: &ship,
		Address:          model.Address{Name: "Ada", Line1: "1 Main St", City: "Sydney", PostalCode: "2000", Country: "AU"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3500), o.Total)
	assert.Equal(t, "Classic Tee / Size: M / Color: Black", o.Items[0].Title)
}

func TestNewContainer_UnknownDriver(t *testing.T) {
	_, err := NewContainer(context.Background(), config.Config{StoreDriver: "sqlite", LogLevel: "error", ServiceName: "container-test-2"}, "test")
	assert.Error(t, err)
}
