package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "insufficient_stock", Result(fmt.Errorf("reserve: %w", apperr.ErrInsufficientStock)))
	assert.Equal(t, "inconsistency", Result(fmt.Errorf("%w: %w", apperr.ErrFulfillmentInconsistency, apperr.ErrInvalidState)))
	assert.Equal(t, "error", Result(errors.New("x")))
}

func TestEngine_TransitionCountsInconsistency(t *testing.T) {
	m := NewEngine(prometheus.NewRegistry(), "test")
	m.Transition("PAID", nil)
	m.Transition("PAID", fmt.Errorf("%w: boom", apperr.ErrFulfillmentInconsistency))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.inconsistencies))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("PAID", "ok")))
}

func TestEngine_NilIsNoop(t *testing.T) {
	var m *Engine
	assert.NotPanics(t, func() {
		m.LedgerOp("reserve", nil)
		m.Checkout(nil, 1)
		m.Transition("PAID", nil)
		m.PriceDrift()
	})
}

func TestSubsystem(t *testing.T) {
	assert.Equal(t, "storefront_orders", subsystem("storefront-orders"))
	assert.Equal(t, "api_v2", subsystem("api.v2"))
}
