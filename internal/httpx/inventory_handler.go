package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	Ledger *inventory.Ledger
	Logger *zap.Logger
}

type openInventoryReq struct {
	Quantity          int `json:"quantity"`
	LowStockThreshold int `json:"low_stock_threshold"`
}

type adjustReq struct {
	Delta int `json:"delta"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/inventory/{variantId}", h.get)
	r.Post("/inventory/{variantId}", h.open)
	r.Post("/inventory/{variantId}/adjust", h.adjust)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Ledger.Get(ctx, chi.URLParam(r, "variantId"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventory(rec))
}

func (h *InventoryHandler) open(w http.ResponseWriter, r *http.Request) {
	var req openInventoryReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Ledger.Open(ctx, chi.URLParam(r, "variantId"), req.Quantity, req.LowStockThreshold)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInventory(rec))
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Ledger.Adjust(ctx, chi.URLParam(r, "variantId"), req.Delta)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventory(rec))
}
