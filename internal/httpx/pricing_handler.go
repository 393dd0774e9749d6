package httpx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/pricing"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PricingHandler struct {
	Prices *pricing.Service
	Logger *zap.Logger
}

type setPriceReq struct {
	Currency  string     `json:"currency"`
	Amount    int64      `json:"amount"`
	ValidFrom *time.Time `json:"valid_from"`
}

func (h *PricingHandler) Register(r chi.Router) {
	r.Get("/variants/{id}/price", h.price)
	r.Get("/variants/{id}/prices", h.history)
	r.Post("/variants/{id}/prices", h.setPrice)
}

// price resolves ?currency= at ?at= (RFC 3339), defaulting to now.
func (h *PricingHandler) price(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	at := h.Prices.Now()
	if s := q.Get("at"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, h.Logger, fmt.Errorf("at %q: %w", s, apperr.ErrInvalidInput))
			return
		}
		at = t
	}

	row, err := h.Prices.At(ctx, chi.URLParam(r, "id"), q.Get("currency"), at)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrice(row))
}

func (h *PricingHandler) history(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rows, err := h.Prices.History(ctx, chi.URLParam(r, "id"), r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	out := make([]priceResp, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPrice(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PricingHandler) setPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var from time.Time
	if req.ValidFrom != nil {
		from = *req.ValidFrom
	}
	row, err := h.Prices.SetPrice(ctx, chi.URLParam(r, "id"), req.Currency, req.Amount, from)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPrice(row))
}
