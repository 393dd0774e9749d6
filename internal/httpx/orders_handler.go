package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StatusCache is satisfied by redisx.StatusCache.
type StatusCache interface {
	Status(ctx context.Context, orderID string) (redisx.CachedStatus, bool)
	SetStatus(ctx context.Context, o model.Order)
}

// IdempotencyStore is satisfied by redisx.Idempotency.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, orderID string) error
}

type OrdersHandler struct {
	Orders *orders.Service
	Cache  StatusCache      // optional
	Idem   IdempotencyStore // optional
	Logger *zap.Logger
}

type addToCartReq struct {
	CartID    string  `json:"cart_id"`
	UserID    *string `json:"user_id"`
	Currency  string  `json:"currency"`
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
}

type addToCartResp struct {
	CartID string       `json:"cart_id"`
	Item   cartItemResp `json:"item"`
}

type checkoutReq struct {
	StoreID          string        `json:"store_id"`
	CartID           string        `json:"cart_id"`
	Address          model.Address `json:"address"`
	ShippingOptionID *string       `json:"shipping_option_id"`
	Discount         int64         `json:"discount"`
	Tax              int64         `json:"tax"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/cart/items", h.addToCart)
	r.Get("/carts/{id}", h.getCart)
	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/confirm", h.confirm)
	r.Post("/orders/{id}/cancel", h.cancel)
}

func (h *OrdersHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cartID, item, err := h.Orders.AddToCart(ctx, orders.AddToCartInput{
		CartID:    req.CartID,
		UserID:    req.UserID,
		Currency:  req.Currency,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, addToCartResp{CartID: cartID, Item: toCartItem(item)})
}

func (h *OrdersHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Orders.GetCart(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if replayed := h.replay(ctx, w, key); replayed {
		return
	}

	o, err := h.Orders.Checkout(ctx, orders.CheckoutInput{
		StoreID:          req.StoreID,
		CartID:           req.CartID,
		Address:          req.Address,
		ShippingOptionID: req.ShippingOptionID,
		Discount:         req.Discount,
		Tax:              req.Tax,
	})
	if err != nil {
		// a concurrent retry may have consumed the cart first
		if errors.Is(err, apperr.ErrEmptyCart) && h.replay(ctx, w, key) {
			return
		}
		writeError(w, h.Logger, err)
		return
	}

	if key != "" && h.Idem != nil {
		if err := h.Idem.Remember(ctx, key, o.ID); err != nil {
			h.Logger.Warn("idempotency key not stored", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, toOrder(o))
}

// replay answers with the order a previous request under key created.
func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, key string) bool {
	if key == "" || h.Idem == nil {
		return false
	}
	orderID, ok, err := h.Idem.Lookup(ctx, key)
	if err != nil {
		h.Logger.Warn("idempotency lookup failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, h.Logger, err)
		return true
	}
	w.Header().Set("Idempotent-Replayed", "true")
	writeJSON(w, http.StatusOK, toOrder(o))
	return true
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		if cs, ok := h.Cache.Status(ctx, orderID); ok {
			writeJSON(w, http.StatusOK, statusResp{Status: cs.Status, UpdatedAt: cs.UpdatedAt})
			return
		}
	}

	// 2) store
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if h.Cache != nil {
		h.Cache.SetStatus(ctx, o)
	}
	writeJSON(w, http.StatusOK, statusResp{Status: o.Status, UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Orders.Confirm)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Orders.Cancel)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (model.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := fn(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}
