package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	op      string
	orderID string
}

type fakeOrders struct {
	calls []call
	err   error
	crash bool
}

func (f *fakeOrders) Confirm(_ context.Context, id string) (model.Order, error) {
	f.calls = append(f.calls, call{"confirm", id})
	if f.crash {
		panic("worker killed mid-transaction")
	}
	return model.Order{ID: id, Status: model.OrderPaid}, f.err
}

func (f *fakeOrders) Cancel(_ context.Context, id string) (model.Order, error) {
	f.calls = append(f.calls, call{"cancel", id})
	return model.Order{ID: id, Status: model.OrderCancelled}, f.err
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *fakeDedup) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.seen[id], nil
}

func (d *fakeDedup) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[id] = true
	return nil
}

func message(eventID, eventType string, payload any) kafkago.Message {
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "gateway",
		Payload:      kafkax.MustMarshal(payload),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func newHandler() (*Handler, *fakeOrders, *fakeDedup) {
	o, d := &fakeOrders{}, &fakeDedup{}
	return &Handler{Orders: o, Dedup: d, Logger: zap.NewNop()}, o, d
}

func TestHandlePaymentEvent_Routes(t *testing.T) {
	ctx := context.Background()
	h, o, _ := newHandler()

	require.NoError(t, h.HandlePaymentEvent(ctx, message("e1", orders.EventPaymentSucceeded,
		orders.PaymentSucceededPayload{OrderID: "o1", PaymentRef: "pay_1", Amount: 3499})))
	require.NoError(t, h.HandlePaymentEvent(ctx, message("e2", orders.EventPaymentFailed,
		orders.PaymentFailedPayload{OrderID: "o2", Reason: "card_declined"})))
	require.NoError(t, h.HandlePaymentEvent(ctx, message("e3", orders.EventOrderPaid,
		orders.OrderStatusPayload{OrderID: "o3"})))

	assert.Equal(t, []call{{"confirm", "o1"}, {"cancel", "o2"}}, o.calls)
}

func TestHandlePaymentEvent_DropsDuplicates(t *testing.T) {
	ctx := context.Background()
	h, o, _ := newHandler()
	m := message("e1", orders.EventPaymentSucceeded, orders.PaymentSucceededPayload{OrderID: "o1"})

	require.NoError(t, h.HandlePaymentEvent(ctx, m))
	require.NoError(t, h.HandlePaymentEvent(ctx, m))
	assert.Len(t, o.calls, 1)
}

func TestHandlePaymentEvent_MalformedIsSkipped(t *testing.T) {
	h, o, _ := newHandler()
	err := h.HandlePaymentEvent(context.Background(), kafkago.Message{Value: []byte("{not json")})
	assert.NoError(t, err)
	assert.Empty(t, o.calls)
}

func TestHandlePaymentEvent_BusinessErrorsAreCommitted(t *testing.T) {
	for _, target := range []error{apperr.ErrNotFound, apperr.ErrInvalidState, apperr.ErrFulfillmentInconsistency} {
		t.Run(target.Error(), func(t *testing.T) {
			h, o, d := newHandler()
			o.err = target
			err := h.HandlePaymentEvent(context.Background(),
				message("e1", orders.EventPaymentFailed, orders.PaymentFailedPayload{OrderID: "o1"}))
			assert.NoError(t, err)
			assert.True(t, d.seen["e1"])
		})
	}
}

func TestHandlePaymentEvent_TransientErrorIsRedelivered(t *testing.T) {
	ctx := context.Background()
	h, o, d := newHandler()
	o.err = apperr.ErrTransient
	m := message("e1", orders.EventPaymentSucceeded, orders.PaymentSucceededPayload{OrderID: "o1"})

	err := h.HandlePaymentEvent(ctx, m)
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.False(t, d.seen["e1"], "failed event must stay unmarked")

	o.err = nil
	require.NoError(t, h.HandlePaymentEvent(ctx, m))
	assert.Len(t, o.calls, 2)
}

func TestHandlePaymentEvent_DedupOutageStillApplies(t *testing.T) {
	h, o, d := newHandler()
	d.err = errors.New("redis down")
	require.NoError(t, h.HandlePaymentEvent(context.Background(),
		message("e1", orders.EventPaymentSucceeded, orders.PaymentSucceededPayload{OrderID: "o1"})))
	assert.Len(t, o.calls, 1)
}

func TestHandlePaymentEvent_CrashBeforeCommitIsReapplied(t *testing.T) {
	ctx := context.Background()
	h, o, d := newHandler()
	m := message("e1", orders.EventPaymentSucceeded, orders.PaymentSucceededPayload{OrderID: "o1"})

	o.crash = true
	assert.Panics(t, func() { _ = h.HandlePaymentEvent(ctx, m) })
	assert.False(t, d.seen["e1"])

	o.crash = false
	require.NoError(t, h.HandlePaymentEvent(ctx, m))
	assert.Equal(t, []call{{"confirm", "o1"}, {"confirm", "o1"}}, o.calls)
	assert.True(t, d.seen["e1"])

	require.NoError(t, h.HandlePaymentEvent(ctx, m))
	assert.Len(t, o.calls, 2)
}
