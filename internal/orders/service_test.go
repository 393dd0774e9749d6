package orders

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/pricing"
	"github.com/ariefcatur/go-storefront-orders/internal/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type published struct {
	topic string
	env   Envelope
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(topic string, _, value []byte, _ ...kafkago.Header) {
	var env Envelope
	_ = json.Unmarshal(value, &env)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, env: env})
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.env.EventType)
	}
	return out
}

type fakeCache struct {
	mu     sync.Mutex
	status map[string]model.OrderStatus
}

func (f *fakeCache) SetStatus(_ context.Context, o model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[o.ID] = o.Status
}

type OrdersSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *memory.Store
	svc   *Service
	pub   *fakePublisher
	cache *fakeCache
}

func TestOrdersSuite(t *testing.T) {
	suite.Run(t, new(OrdersSuite))
}

func (s *OrdersSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	s.store = memory.New().WithClock(clock)
	s.store.PutStore(model.Store{ID: "s1", Name: "Main", DefaultCurrency: "AUD"})
	s.store.PutStore(model.Store{ID: "s2", Name: "Other", DefaultCurrency: "AUD"})
	s.store.PutShippingOption(model.ShippingOption{ID: "ship-std", StoreID: "s1", Name: "Standard", Amount: 500})
	s.store.PutShippingOption(model.ShippingOption{ID: "ship-s2", StoreID: "s2", Name: "Standard", Amount: 700})
	s.store.PutVariant(model.VariantDetail{
		ID: "v-tee", ProductID: "p-tee", SKU: "TEE-M-BLK", ProductTitle: "Tee",
		Options: []model.OptionSelection{{Name: "Size", Value: "M"}, {Name: "Color", Value: "Black"}},
	})
	s.store.PutVariant(model.VariantDetail{ID: "v-cap", ProductID: "p-cap", SKU: "CAP", ProductTitle: "Cap"})

	logger := zap.NewNop()
	m := metrics.NewEngine(prometheus.NewRegistry(), "test")
	s.pub = &fakePublisher{}
	s.cache = &fakeCache{status: map[string]model.OrderStatus{}}
	events := &Events{Publisher: s.pub, Producer: "test", Logger: logger}

	prices := pricing.NewService(s.store, logger)
	prices.Now = clock
	ledger := inventory.NewLedger(s.store, logger, m, events)

	s.svc = &Service{
		Store:   s.store,
		Ledger:  ledger,
		Prices:  prices,
		Events:  events,
		Cache:   s.cache,
		Logger:  logger,
		Metrics: m,
		Now:     clock,
	}

	_, err := prices.SetPrice(s.ctx, "v-tee", "AUD", 2999, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	_, err = prices.SetPrice(s.ctx, "v-cap", "AUD", 1500, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	_, err = ledger.Open(s.ctx, "v-tee", 10, 0)
	s.Require().NoError(err)
	_, err = ledger.Open(s.ctx, "v-cap", 1, 0)
	s.Require().NoError(err)
}

func (s *OrdersSuite) add(cartID, product, variant string, qty int) string {
	id, _, err := s.svc.AddToCart(s.ctx, AddToCartInput{
		CartID: cartID, Currency: "AUD", ProductID: product, VariantID: variant, Quantity: qty,
	})
	s.Require().NoError(err)
	return id
}

func (s *OrdersSuite) inventory(variantID string) model.InventoryRecord {
	rec, err := s.svc.Ledger.Get(s.ctx, variantID)
	s.Require().NoError(err)
	return rec
}

func strPtr(v string) *string { return &v }

func (s *OrdersSuite) TestAddToCart_SnapshotsCurrentPrice() {
	cartID, item, err := s.svc.AddToCart(s.ctx, AddToCartInput{
		Currency: "aud", ProductID: "p-tee", VariantID: "v-tee", Quantity: 2,
	})
	s.Require().NoError(err)
	s.NotEmpty(cartID)
	s.Equal(int64(2999), item.UnitPrice)

	again := s.add(cartID, "p-cap", "v-cap", 1)
	s.Equal(cartID, again)

	cart, err := s.svc.GetCart(s.ctx, cartID)
	s.Require().NoError(err)
	s.Equal("AUD", cart.Currency)
	s.Require().Len(cart.Items, 2)
	s.Equal("v-tee", cart.Items[0].VariantID)
	s.Equal("v-cap", cart.Items[1].VariantID)
}

func (s *OrdersSuite) TestAddToCart_UnknownCartStartsNewOne() {
	id := s.add("does-not-exist", "p-tee", "v-tee", 1)
	s.NotEqual("does-not-exist", id)
}

func (s *OrdersSuite) TestAddToCart_Rejections() {
	_, _, err := s.svc.AddToCart(s.ctx, AddToCartInput{Currency: "USD", ProductID: "p-tee", VariantID: "v-tee", Quantity: 1})
	s.ErrorIs(err, apperr.ErrNoPriceForCurrency)

	_, _, err = s.svc.AddToCart(s.ctx, AddToCartInput{Currency: "AUD", ProductID: "p-cap", VariantID: "v-tee", Quantity: 1})
	s.ErrorIs(err, apperr.ErrNotFound)

	_, _, err = s.svc.AddToCart(s.ctx, AddToCartInput{Currency: "AUD", ProductID: "p-tee", VariantID: "v-tee", Quantity: 0})
	s.ErrorIs(err, apperr.ErrInvalidInput)

	cartID := s.add("", "p-tee", "v-tee", 1)
	_, _, err = s.svc.AddToCart(s.ctx, AddToCartInput{CartID: cartID, Currency: "NZD", ProductID: "p-tee", VariantID: "v-tee", Quantity: 1})
	s.ErrorIs(err, apperr.ErrInvalidInput)
	cart, err := s.svc.GetCart(s.ctx, cartID)
	s.Require().NoError(err)
	s.Len(cart.Items, 1)
}

func (s *OrdersSuite) TestCheckout_TotalsAndSnapshots() {
	cartID := s.add("", "p-tee", "v-tee", 1)

	o, err := s.svc.Checkout(s.ctx, CheckoutInput{
		StoreID: "s1", CartID: cartID, ShippingOptionID: strPtr("ship-std"),
		Address: model.Address{Name: "A", Line1: "1 St", City: "Sydney", PostalCode: "2000", Country: "AU"},
	})
	s.Require().NoError(err)
	s.Equal(model.OrderPending, o.Status)
	s.Equal("AUD", o.Currency)
	s.Equal(int64(2999), o.Subtotal)
	s.Equal(int64(500), o.Shipping)
	s.Equal(int64(3499), o.Total)
	s.NotEmpty(o.AddressToID)
	s.Require().Len(o.Items, 1)
	s.Equal("TEE-M-BLK", o.Items[0].SKU)
	s.Equal("Tee / Size: M / Color: Black", o.Items[0].Title)
	s.Equal(int64(2999), o.Items[0].UnitPrice)

	rec := s.inventory("v-tee")
	s.Equal(10, rec.Quantity)
	s.Equal(1, rec.Reserved)

	_, err = s.svc.GetCart(s.ctx, cartID)
	s.ErrorIs(err, apperr.ErrNotFound)

	stored, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(o.Total, stored.Total)
	s.Len(stored.Items, 1)

	s.Equal([]string{EventOrderCreated}, s.pub.types())
	s.Equal(model.OrderPending, s.cache.status[o.ID])
}

func (s *OrdersSuite) TestCheckout_DiscountAndTax() {
	cartID := s.add("", "p-tee", "v-tee", 2)
	o, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: cartID, Discount: 998, Tax: 100})
	s.Require().NoError(err)
	s.Equal(int64(5998), o.Subtotal)
	s.Equal(int64(0), o.Shipping)
	s.Equal(int64(5998-998+100), o.Total)
}

func (s *OrdersSuite) TestCheckout_EmptyOrMissingCart() {
	_, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: "nope"})
	s.ErrorIs(err, apperr.ErrEmptyCart)
	s.Empty(s.store.OrderIDs())
}

func (s *OrdersSuite) TestCheckout_InvalidShippingOption() {
	cartID := s.add("", "p-tee", "v-tee", 1)

	for _, opt := range []string{"missing", "ship-s2"} {
		_, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: cartID, ShippingOptionID: strPtr(opt)})
		s.ErrorIs(err, apperr.ErrInvalidShippingOption, opt)
	}

	cart, err := s.svc.GetCart(s.ctx, cartID)
	s.Require().NoError(err)
	s.Len(cart.Items, 1)
	s.Equal(0, s.inventory("v-tee").Reserved)
}

func (s *OrdersSuite) TestCheckout_UnknownStore() {
	cartID := s.add("", "p-tee", "v-tee", 1)
	_, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "nope", CartID: cartID})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *OrdersSuite) TestCheckout_ReservationFailureRollsBackEverything() {
	cartID := s.add("", "p-tee", "v-tee", 2)
	s.add(cartID, "p-cap", "v-cap", 2) // only 1 cap in stock

	_, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: cartID, ShippingOptionID: strPtr("ship-std")})
	s.Require().ErrorIs(err, apperr.ErrInsufficientStock)

	s.Empty(s.store.OrderIDs())
	s.Equal(0, s.inventory("v-tee").Reserved)
	s.Equal(0, s.inventory("v-cap").Reserved)

	cart, err := s.svc.GetCart(s.ctx, cartID)
	s.Require().NoError(err)
	s.Len(cart.Items, 2)
	s.Empty(s.pub.types())
}

func (s *OrdersSuite) TestCheckout_HonoursCartPriceAfterPriceChange() {
	cartID := s.add("", "p-tee", "v-tee", 1)

	_, err := s.svc.Prices.SetPrice(s.ctx, "v-tee", "AUD", 3999, s.now.Add(-30*time.Minute))
	s.Require().NoError(err)

	o, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: cartID})
	s.Require().NoError(err)
	s.Equal(int64(2999), o.Items[0].UnitPrice)
	s.Equal(int64(2999), o.Subtotal)
}

func (s *OrdersSuite) TestCheckout_RaceForLastUnit() {
	carts := []string{s.add("", "p-cap", "v-cap", 1), s.add("", "p-cap", "v-cap", 1)}

	var wg sync.WaitGroup
	errs := make([]error, len(carts))
	for i, c := range carts {
		wg.Add(1)
		go func(i int, c string) {
			defer wg.Done()
			_, errs[i] = s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: c})
		}(i, c)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.ErrorIs(err, apperr.ErrInsufficientStock)
	}
	s.Equal(1, ok)
	s.Len(s.store.OrderIDs(), 1)
	rec := s.inventory("v-cap")
	s.Equal(1, rec.Reserved)
	s.True(rec.Valid())
}

func (s *OrdersSuite) checkoutTee(qty int) model.Order {
	cartID := s.add("", "p-tee", "v-tee", qty)
	o, err := s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: cartID})
	s.Require().NoError(err)
	return o
}

func (s *OrdersSuite) TestConfirm_CommitsReservation() {
	o := s.checkoutTee(2)
	s.Equal(2, s.inventory("v-tee").Reserved)

	paid, err := s.svc.Confirm(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(model.OrderPaid, paid.Status)

	rec := s.inventory("v-tee")
	s.Equal(8, rec.Quantity)
	s.Equal(0, rec.Reserved)
	s.Equal(model.OrderPaid, s.cache.status[o.ID])
}

func (s *OrdersSuite) TestConfirm_ReturnsNewUpdatedAt() {
	o := s.checkoutTee(1)
	s.now = s.now.Add(time.Minute)

	paid, err := s.svc.Confirm(s.ctx, o.ID)
	s.Require().NoError(err)
	s.True(paid.UpdatedAt.Equal(s.now))
	s.True(paid.UpdatedAt.After(o.UpdatedAt))

	stored, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.True(stored.UpdatedAt.Equal(paid.UpdatedAt))
}

func (s *OrdersSuite) TestConfirm_IsIdempotent() {
	o := s.checkoutTee(2)

	first, err := s.svc.Confirm(s.ctx, o.ID)
	s.Require().NoError(err)
	second, err := s.svc.Confirm(s.ctx, o.ID)
	s.Require().NoError(err)

	s.Equal(first.Status, second.Status)
	rec := s.inventory("v-tee")
	s.Equal(8, rec.Quantity)
	s.Equal(0, rec.Reserved)
	s.Equal([]string{EventOrderCreated, EventOrderPaid}, s.pub.types())
}

func (s *OrdersSuite) TestConfirm_ConcurrentDuplicateCallbacks() {
	o := s.checkoutTee(2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Confirm(s.ctx, o.ID)
			s.NoError(err)
		}()
	}
	wg.Wait()

	rec := s.inventory("v-tee")
	s.Equal(8, rec.Quantity)
	s.Equal(0, rec.Reserved)
}

func (s *OrdersSuite) TestConfirm_UnknownOrder() {
	_, err := s.svc.Confirm(s.ctx, "nope")
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *OrdersSuite) TestConfirm_InconsistentInventoryLeavesOrderPending() {
	o := s.checkoutTee(2)
	// something released the hold behind the order's back
	_, err := s.svc.Ledger.Release(s.ctx, "v-tee", 2)
	s.Require().NoError(err)

	_, err = s.svc.Confirm(s.ctx, o.ID)
	s.Require().ErrorIs(err, apperr.ErrFulfillmentInconsistency)
	s.ErrorIs(err, apperr.ErrInvalidState)

	stored, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(model.OrderPending, stored.Status)
	rec := s.inventory("v-tee")
	s.Equal(10, rec.Quantity)
	s.Equal(0, rec.Reserved)
}

func (s *OrdersSuite) TestCancel_ReleasesReservation() {
	o := s.checkoutTee(3)

	c, err := s.svc.Cancel(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, c.Status)
	rec := s.inventory("v-tee")
	s.Equal(10, rec.Quantity)
	s.Equal(0, rec.Reserved)

	again, err := s.svc.Cancel(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, again.Status)

	confirmed, err := s.svc.Confirm(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, confirmed.Status)
	s.Equal(10, s.inventory("v-tee").Quantity)
	s.Equal([]string{EventOrderCreated, EventOrderCancelled}, s.pub.types())
}

func (s *OrdersSuite) TestCancel_PaidOrderIsRejected() {
	o := s.checkoutTee(1)
	_, err := s.svc.Confirm(s.ctx, o.ID)
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, o.ID)
	s.ErrorIs(err, apperr.ErrInvalidState)
	s.Equal(9, s.inventory("v-tee").Quantity)
}

func (s *OrdersSuite) TestLowStockEventAfterCheckout() {
	s.store.PutVariant(model.VariantDetail{ID: "v-sock", ProductID: "p-sock", SKU: "SOCK", ProductTitle: "Socks"})
	_, err := s.svc.Prices.SetPrice(s.ctx, "v-sock", "AUD", 900, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	_, err = s.svc.Ledger.Open(s.ctx, "v-sock", 5, 3)
	s.Require().NoError(err)

	cartID := s.add("", "p-sock", "v-sock", 2)
	_, err = s.svc.Checkout(s.ctx, CheckoutInput{StoreID: "s1", CartID: cartID})
	s.Require().NoError(err)

	s.Equal([]string{EventOrderCreated, EventStockLow}, s.pub.types())
	s.Equal(TopicStockLow, s.pub.msgs[1].topic)
	p, err := decodeStockLow(s.pub.msgs[1].env)
	s.Require().NoError(err)
	s.Equal(3, p.Available)
}

func decodeStockLow(env Envelope) (StockLowPayload, error) {
	var p StockLowPayload
	err := json.Unmarshal(env.Payload, &p)
	return p, err
}

func TestLineTitle(t *testing.T) {
	v := model.VariantDetail{ProductTitle: "Hoodie", Options: []model.OptionSelection{{Name: "Size", Value: "L"}}}
	if got := LineTitle(v); got != "Hoodie / Size: L" {
		t.Fatalf("LineTitle = %q", got)
	}
	if got := LineTitle(model.VariantDetail{ProductTitle: "Mug"}); got != "Mug" {
		t.Fatalf("LineTitle = %q", got)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.OrderStatus
		want     bool
	}{
		{model.OrderPending, model.OrderPaid, true},
		{model.OrderPending, model.OrderCancelled, true},
		{model.OrderPaid, model.OrderCancelled, false},
		{model.OrderCancelled, model.OrderPaid, false},
		{model.OrderPaid, model.OrderPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if !Terminal(model.OrderPaid) || !Terminal(model.OrderCancelled) || Terminal(model.OrderPending) {
		t.Error("unexpected terminal states")
	}
}
