// Package orders turns carts into orders and drives orders through their
// lifecycle. Inventory is only touched through the ledger, inside the same
// transaction as the order rows.
package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/pricing"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StatusCache mirrors order status for fast reads (see redisx.StatusCache).
type StatusCache interface {
	SetStatus(ctx context.Context, o model.Order)
}

type Service struct {
	Store   store.Store
	Ledger  *inventory.Ledger
	Prices  *pricing.Service
	Events  *Events
	Cache   StatusCache
	Logger  *zap.Logger
	Metrics *metrics.Engine
	Tracer  trace.Tracer
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tr := s.Tracer
	if tr == nil {
		tr = otel.Tracer("storefront/orders")
	}
	return tr.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) cacheStatus(ctx context.Context, o model.Order) {
	if s.Cache != nil {
		s.Cache.SetStatus(ctx, o)
	}
}

func (s *Service) Get(ctx context.Context, orderID string) (o model.Order, err error) {
	err = s.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	return o, err
}
