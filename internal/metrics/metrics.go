package metrics

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Engine counts inventory, checkout and fulfilment outcomes. A nil *Engine
// is valid and records nothing.
type Engine struct {
	ledgerOps       *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
	transitions     *prometheus.CounterVec
	inconsistencies prometheus.Counter
	priceDrift      prometheus.Counter
}

// subsystem turns a service name such as "storefront-orders" into a valid
// metric name component.
func subsystem(service string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, service)
}

func NewEngine(reg prometheus.Registerer, service string) *Engine {
	service = subsystem(service)
	m := &Engine{
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "inventory_ops_total",
			Help: "Inventory ledger operations by operation and result.",
		}, []string{"op", "result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "checkouts_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: service,
			Name:    "checkout_duration_ms",
			Help:    "Checkout transaction latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "order_transitions_total",
			Help: "Order status transitions by target status and result.",
		}, []string{"to", "result"}),
		inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "fulfillment_inconsistencies_total",
			Help: "Confirm/cancel attempts that found inventory out of step with the order.",
		}),
		priceDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "checkout_price_drift_total",
			Help: "Checkout lines whose cart price differs from the live price.",
		}),
	}
	reg.MustRegister(m.ledgerOps, m.checkouts, m.checkoutLatency, m.transitions, m.inconsistencies, m.priceDrift)
	return m
}

func (m *Engine) LedgerOp(op string, err error) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(op, Result(err)).Inc()
}

func (m *Engine) Checkout(err error, ms float64) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(Result(err)).Inc()
	m.checkoutLatency.Observe(ms)
}

func (m *Engine) Transition(to string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to, Result(err)).Inc()
	if errors.Is(err, apperr.ErrFulfillmentInconsistency) {
		m.inconsistencies.Inc()
	}
}

func (m *Engine) PriceDrift() {
	if m == nil {
		return
	}
	m.priceDrift.Inc()
}

// Result maps an error onto a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrFulfillmentInconsistency):
		return "inconsistency"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperr.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, apperr.ErrNoPriceForCurrency):
		return "no_price"
	case errors.Is(err, apperr.ErrInvalidShippingOption):
		return "invalid_shipping_option"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, apperr.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	service = subsystem(service)
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
