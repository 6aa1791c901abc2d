package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/gateway"
	orderrepo "designer-marketplace/internal/repository/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleOnline_SingleLineCaptured(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 2500, 4)
	h.addToCart(t, "buyer-1", p, 3)
	intent := h.intent(t, "buyer-1", 7500, nil)
	sig := h.capture("pay_1", intent, 7500)

	res, err := h.coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
		PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: address(),
	})
	require.NoError(t, err)
	require.Len(t, res.OrderIDs, 1)
	assert.False(t, res.Replayed)

	orders := h.orders(t, "buyer-1")
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, domain.PaymentStatusCompleted, o.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, int64(7500), o.TotalPrice)
	assert.Equal(t, "India", o.ShippingAddress.Country)
	require.NotNil(t, o.PaymentReference)
	assert.Equal(t, "pay_1", *o.PaymentReference)

	assert.Equal(t, 1, h.stock(t, p))
	snap, err := h.carts.Snapshot(ctx, "buyer-1")
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	record, err := h.store.Orders().FindPaymentByReference(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, res.OrderIDs, record.OrderIDs)
	assert.Equal(t, domain.PaymentRecordCaptured, record.Status)
	assert.Equal(t, "upi", record.Method)

	hold, ok := h.store.Ledger().Hold(o.ReservationID)
	require.True(t, ok)
	assert.Equal(t, domain.ReservationCommitted, hold.Status)
}

func TestSettle_PartialStockFailsWholeCart(t *testing.T) {
	for _, path := range []string{pathOnline, pathCOD} {
		t.Run(path, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			a := h.product(t, 1000, 5)
			b := h.product(t, 3000, 0)
			h.addToCart(t, "buyer-1", a, 2)
			h.addToCart(t, "buyer-1", b, 1)

			var err error
			if path == pathCOD {
				_, err = h.coord.SettleCashOnDelivery(ctx, buyer("buyer-1"), address(), "")
			} else {
				intent := h.intent(t, "buyer-1", 5000, nil)
				sig := h.capture("pay_1", intent, 5000)
				_, err = h.coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
					PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: address(),
				})
			}

			var stockErr *domain.InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
			assert.Equal(t, b, stockErr.ProductID)
			assert.Equal(t, 5, h.stock(t, a))
			assert.Equal(t, 0, h.stock(t, b))
			assert.Empty(t, h.orders(t, "buyer-1"))

			snap, err := h.carts.Snapshot(ctx, "buyer-1")
			require.NoError(t, err)
			assert.Len(t, snap.Lines, 2)
		})
	}
}

func TestSettleOnline_PaymentFailuresReleaseStock(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(h *harness, intent string) string
		wantErr error
	}{
		{
			name: "bad signature",
			prepare: func(h *harness, intent string) string {
				sig := []byte(h.capture("pay_1", intent, 2000))
				sig[0] ^= 0x01
				return string(sig)
			},
			wantErr: domain.ErrInvalidSignature,
		},
		{
			name: "not captured",
			prepare: func(h *harness, intent string) string {
				h.gw.setPayment(gateway.Payment{ID: "pay_1", OrderID: intent, Status: gateway.StatusAuthorized, Amount: 2000})
				return gateway.SignPayment(testSecret, intent, "pay_1")
			},
			wantErr: domain.ErrPaymentNotCompleted,
		},
		{
			name: "underpaid",
			prepare: func(h *harness, intent string) string {
				return h.capture("pay_1", intent, 1999)
			},
			wantErr: domain.ErrPaymentNotCompleted,
		},
		{
			name: "unknown to gateway",
			prepare: func(h *harness, intent string) string {
				return gateway.SignPayment(testSecret, intent, "pay_1")
			},
			wantErr: domain.ErrPaymentNotCompleted,
		},
		{
			name: "gateway timeout",
			prepare: func(h *harness, intent string) string {
				h.gw.fetchErr = fmt.Errorf("%w: deadline exceeded", domain.ErrGatewayUnavailable)
				return h.capture("pay_1", intent, 2000)
			},
			wantErr: domain.ErrGatewayUnavailable,
		},
		{
			name: "payment for another intent",
			prepare: func(h *harness, intent string) string {
				h.gw.setPayment(gateway.Payment{ID: "pay_1", OrderID: "order_other", Status: gateway.StatusCaptured, Amount: 2000})
				return gateway.SignPayment(testSecret, intent, "pay_1")
			},
			wantErr: domain.ErrInvalidSignature,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.product(t, 1000, 3)
			h.addToCart(t, "buyer-1", p, 2)
			intent := h.intent(t, "buyer-1", 2000, nil)
			sig := tc.prepare(h, intent)

			_, err := h.coord.SettleOnline(context.Background(), buyer("buyer-1"), OnlineInput{
				PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: address(),
			})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 3, h.stock(t, p), "stock must be returned")
			assert.Empty(t, h.orders(t, "buyer-1"))
			snap, _ := h.carts.Snapshot(context.Background(), "buyer-1")
			assert.Len(t, snap.Lines, 1)
		})
	}
}

func TestSettleOnline_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 1000, 3)
	h.addToCart(t, "buyer-1", p, 1)
	intent := h.intent(t, "buyer-2", 1000, nil)
	sig := h.capture("pay_1", intent, 1000)
	in := OnlineInput{PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: address()}

	_, err := h.coord.SettleOnline(ctx, domain.Identity{}, in)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	_, err = h.coord.SettleOnline(ctx, domain.Identity{SubjectID: "designer-1", Role: domain.RoleDesigner}, in)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = h.coord.SettleOnline(ctx, buyer("buyer-1"), in)
	assert.ErrorIs(t, err, domain.ErrAccessDenied, "intent belongs to another buyer")

	noCity := in
	noCity.Shipping.City = ""
	_, err = h.coord.SettleOnline(ctx, buyer("buyer-1"), noCity)
	assert.ErrorIs(t, err, domain.ErrValidation)

	missingIntent := in
	missingIntent.OrderIntentRef = "order_missing"
	_, err = h.coord.SettleOnline(ctx, buyer("buyer-1"), missingIntent)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 3, h.stock(t, p))
}

func TestSettle_EmptyCart(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.SettleCashOnDelivery(context.Background(), buyer("buyer-1"), address(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestSettleCashOnDelivery_PendingPayment(t *testing.T) {
	h := newHarness(t)
	a := h.product(t, 1000, 5)
	b := h.product(t, 250, 5)
	h.addToCart(t, "buyer-1", a, 1)
	h.addToCart(t, "buyer-1", b, 4)

	res, err := h.coord.SettleCashOnDelivery(context.Background(), buyer("buyer-1"), address(), "leave at door")
	require.NoError(t, err)
	assert.Len(t, res.OrderIDs, 2)

	for _, o := range h.orders(t, "buyer-1") {
		assert.Equal(t, domain.PaymentStatusPending, o.PaymentStatus)
		assert.Equal(t, domain.PaymentMethodCashOnDelivery, o.PaymentMethod)
		assert.Nil(t, o.PaymentReference)
		assert.Equal(t, "leave at door", o.Notes)
	}
	assert.Equal(t, 4, h.stock(t, a))
	assert.Equal(t, 1, h.stock(t, b))
}

func TestSettle_TotalPriceSurvivesPriceChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 1200, 5)
	h.addToCart(t, "buyer-1", p, 2)

	_, err := h.coord.SettleCashOnDelivery(ctx, buyer("buyer-1"), address(), "")
	require.NoError(t, err)
	require.NoError(t, h.store.Products().SetPrice(ctx, p, 9999))

	o := h.orders(t, "buyer-1")[0]
	assert.Equal(t, int64(2400), o.TotalPrice)
	assert.Equal(t, int64(1200), o.UnitPriceMinor)
}

func TestSettle_VerifyThenWebhookReplayIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 1000, 5)
	h.addToCart(t, "buyer-1", p, 2)
	ship := address()
	intent := h.intent(t, "buyer-1", 2000, &ship)
	sig := h.capture("pay_1", intent, 2000)

	first, err := h.coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
		PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: ship,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := h.coord.SettleFromWebhook(ctx, CapturedPayment{PaymentRef: "pay_1", IntentID: intent, Amount: 2000})
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, first.OrderIDs, res.OrderIDs)
	}

	again, err := h.coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
		PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: ship,
	})
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	assert.Len(t, h.orders(t, "buyer-1"), 1)
	assert.Equal(t, 3, h.stock(t, p))
}

func TestSettleFromWebhook_SettlesWithoutBrowser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 1000, 5)
	h.addToCart(t, "buyer-1", p, 1)
	ship := address()
	intent := h.intent(t, "buyer-1", 1000, &ship)

	res, err := h.coord.SettleFromWebhook(ctx, CapturedPayment{PaymentRef: "pay_9", IntentID: intent, Amount: 1000, Method: "netbanking"})
	require.NoError(t, err)
	require.Len(t, res.OrderIDs, 1)

	o := h.orders(t, "buyer-1")[0]
	assert.Equal(t, domain.PaymentStatusCompleted, o.PaymentStatus)
	assert.Equal(t, "Chennai", o.ShippingAddress.City)
	assert.Equal(t, 4, h.stock(t, p))

	// the browser confirmation arriving late resolves to the same orders
	sig := h.capture("pay_9", intent, 1000)
	late, err := h.coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
		PaymentRef: "pay_9", OrderIntentRef: intent, Signature: sig, Shipping: ship,
	})
	require.NoError(t, err)
	assert.True(t, late.Replayed)
	assert.Equal(t, res.OrderIDs, late.OrderIDs)
}

func TestSettleFromWebhook_NeedsStoredShipping(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, 1000, 5)
	h.addToCart(t, "buyer-1", p, 1)
	intent := h.intent(t, "buyer-1", 1000, nil)

	_, err := h.coord.SettleFromWebhook(context.Background(), CapturedPayment{PaymentRef: "pay_1", IntentID: intent, Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 5, h.stock(t, p))
}

func TestSettle_VerifyAndWebhookRaceSettleOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newHarness(t)
		ctx := context.Background()
		p := h.product(t, 1000, 2)
		h.addToCart(t, "buyer-1", p, 2)
		ship := address()
		intent := h.intent(t, "buyer-1", 2000, &ship)
		sig := h.capture("pay_1", intent, 2000)

		var wg sync.WaitGroup
		results := make([]*Result, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = h.coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
				PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: ship,
			})
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = h.coord.SettleFromWebhook(ctx, CapturedPayment{PaymentRef: "pay_1", IntentID: intent, Amount: 2000})
		}()
		wg.Wait()

		require.NoError(t, errs[0], "round %d", round)
		require.NoError(t, errs[1], "round %d", round)
		assert.Equal(t, results[0].OrderIDs, results[1].OrderIDs)
		assert.Len(t, h.orders(t, "buyer-1"), 1)
		assert.Equal(t, 0, h.stock(t, p), "round %d", round)
	}
}

func TestSettle_ConcurrentBuyersNeverOversell(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const stock = 5
	p := h.product(t, 100, stock)

	const buyers = 12
	for i := 0; i < buyers; i++ {
		h.addToCart(t, fmt.Sprintf("buyer-%d", i), p, 1+i%2)
	}

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.coord.SettleCashOnDelivery(ctx, buyer(id), address(), "")
			if err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error for %s: %v", id, err)
			}
		}(fmt.Sprintf("buyer-%d", i))
	}
	wg.Wait()

	sold := 0
	for i := 0; i < buyers; i++ {
		for _, o := range h.orders(t, fmt.Sprintf("buyer-%d", i)) {
			sold += o.Quantity
		}
	}
	assert.LessOrEqual(t, sold, stock)
	assert.Equal(t, stock-sold, h.stock(t, p))
}

type failingOrders struct {
	orderStore
	err error
}

func (f failingOrders) Settle(context.Context, orderrepo.SettleInput) error { return f.err }

func TestSettle_PersistFailureReleases(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, 1000, 3)
	h.addToCart(t, "buyer-1", p, 2)
	coord := NewCoordinator(Deps{
		Carts:   h.carts,
		Ledger:  h.store.Ledger(),
		Orders:  failingOrders{orderStore: h.store.Orders(), err: errors.New("connection reset")},
		Intents: h.store.Payments(),
		Gateway: h.gw,
	}, Options{})

	_, err := coord.SettleCashOnDelivery(context.Background(), buyer("buyer-1"), address(), "")
	require.Error(t, err)
	assert.Equal(t, 3, h.stock(t, p))
	snap, _ := h.carts.Snapshot(context.Background(), "buyer-1")
	assert.Len(t, snap.Lines, 1)
}

// gatedOrders parks the first Settle call until proceed is closed.
type gatedOrders struct {
	orderStore
	once    sync.Once
	entered chan struct{}
	proceed chan struct{}
}

func newGatedOrders(inner orderStore) *gatedOrders {
	return &gatedOrders{orderStore: inner, entered: make(chan struct{}), proceed: make(chan struct{})}
}

func (g *gatedOrders) Settle(ctx context.Context, in orderrepo.SettleInput) error {
	g.once.Do(func() { close(g.entered) })
	<-g.proceed
	return g.orderStore.Settle(ctx, in)
}

func (h *harness) coordinatorWith(orders orderStore, wait time.Duration) *Coordinator {
	return NewCoordinator(Deps{
		Carts:   h.carts,
		Ledger:  h.store.Ledger(),
		Orders:  orders,
		Intents: h.store.Payments(),
		Gateway: h.gw,
	}, Options{SettleWait: wait})
}

func TestSettleOnline_WaitsForWebhookHoldingAllStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 1000, 2)
	h.addToCart(t, "buyer-1", p, 2)
	ship := address()
	intent := h.intent(t, "buyer-1", 2000, &ship)
	sig := h.capture("pay_1", intent, 2000)

	gate := newGatedOrders(h.store.Orders())
	coord := h.coordinatorWith(gate, 2*time.Second)

	type outcome struct {
		res *Result
		err error
	}
	webhookDone := make(chan outcome, 1)
	go func() {
		res, err := coord.SettleFromWebhook(ctx, CapturedPayment{PaymentRef: "pay_1", IntentID: intent, Amount: 2000})
		webhookDone <- outcome{res, err}
	}()
	<-gate.entered
	require.Equal(t, 0, h.stock(t, p))

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(gate.proceed)
	}()
	res, err := coord.SettleOnline(ctx, buyer("buyer-1"), OnlineInput{
		PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: ship,
	})
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	hook := <-webhookDone
	require.NoError(t, hook.err)
	assert.Equal(t, hook.res.OrderIDs, res.OrderIDs)
	assert.Len(t, h.orders(t, "buyer-1"), 1)
	assert.Equal(t, 0, h.stock(t, p))
}

func TestSettleOnline_ReportsInProgressWhenWebhookIsSlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.product(t, 1000, 2)
	h.addToCart(t, "buyer-1", p, 2)
	ship := address()
	intent := h.intent(t, "buyer-1", 2000, &ship)
	sig := h.capture("pay_1", intent, 2000)

	gate := newGatedOrders(h.store.Orders())
	coord := h.coordinatorWith(gate, 30*time.Millisecond)

	webhookDone := make(chan error, 1)
	go func() {
		_, err := coord.SettleFromWebhook(ctx, CapturedPayment{PaymentRef: "pay_1", IntentID: intent, Amount: 2000})
		webhookDone <- err
	}()
	<-gate.entered

	input := OnlineInput{PaymentRef: "pay_1", OrderIntentRef: intent, Signature: sig, Shipping: ship}
	_, err := coord.SettleOnline(ctx, buyer("buyer-1"), input)
	require.ErrorIs(t, err, domain.ErrSettlementInProgress)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)

	close(gate.proceed)
	require.NoError(t, <-webhookDone)

	res, err := coord.SettleOnline(ctx, buyer("buyer-1"), input)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Len(t, h.orders(t, "buyer-1"), 1)
	assert.Equal(t, 0, h.stock(t, p))
}

func TestSettleCashOnDelivery_InsufficientStockDoesNotWait(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, 1000, 1)
	h.addToCart(t, "buyer-1", p, 1)
	h.addToCart(t, "buyer-2", p, 1)
	gate := newGatedOrders(h.store.Orders())
	coord := h.coordinatorWith(gate, time.Minute)

	go func() { _, _ = coord.SettleCashOnDelivery(context.Background(), buyer("buyer-1"), address(), "") }()
	<-gate.entered

	start := time.Now()
	_, err := coord.SettleCashOnDelivery(context.Background(), buyer("buyer-2"), address(), "")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Less(t, time.Since(start), time.Second)
	close(gate.proceed)
}

func TestSettle_ExpiredHoldIsNotCommitted(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, 1000, 3)
	h.addToCart(t, "buyer-1", p, 2)
	coord := NewCoordinator(Deps{
		Carts:   h.carts,
		Ledger:  h.store.Ledger(),
		Orders:  h.store.Orders(),
		Intents: h.store.Payments(),
		Gateway: h.gw,
	}, Options{
		ReservationTTL: time.Minute,
		Now:            func() time.Time { return time.Now().UTC().Add(-time.Hour) },
	})

	_, err := coord.SettleCashOnDelivery(context.Background(), buyer("buyer-1"), address(), "")
	require.ErrorIs(t, err, domain.ErrReservationExpired)
	assert.Equal(t, 3, h.stock(t, p))
	assert.Empty(t, h.orders(t, "buyer-1"))
}
