package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/events"
	"designer-marketplace/internal/gateway"
	"designer-marketplace/internal/logging"
	"designer-marketplace/internal/metrics"
	"designer-marketplace/internal/repository/inventory"
	orderrepo "designer-marketplace/internal/repository/order"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pathOnline  = "online"
	pathCOD     = "cod"
	pathWebhook = "webhook"

	compensationTimeout = 5 * time.Second
	settlePollInterval  = 20 * time.Millisecond
)

type cartSource interface {
	Snapshot(ctx context.Context, buyerID string) (*domain.Cart, error)
	Forget(ctx context.Context, buyerID string)
}

type orderStore interface {
	Settle(ctx context.Context, in orderrepo.SettleInput) error
	FindPaymentByReference(ctx context.Context, paymentRef string) (*domain.PaymentRecord, error)
}

type intentStore interface {
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

type Deps struct {
	Carts   cartSource
	Ledger  inventory.Ledger
	Orders  orderStore
	Intents intentStore
	Gateway gateway.Client
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Options struct {
	// ReservationTTL bounds how long a hold may keep stock before the sweeper returns it.
	ReservationTTL time.Duration
	// SettleWait bounds how long an attempt that lost the stock to a concurrent
	// attempt for the same payment waits for that attempt's outcome.
	SettleWait time.Duration
	Now        func() time.Time
	NewID      func() string
}

// Coordinator runs checkouts: snapshot the cart, reserve every line, verify
// payment, then commit orders, payment record and cart deletion together. Any
// failure after stock was taken releases the hold before returning.
type Coordinator struct {
	carts   cartSource
	ledger  inventory.Ledger
	orders  orderStore
	intents intentStore
	gateway gateway.Client
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger

	ttl        time.Duration
	settleWait time.Duration
	now        func() time.Time
	newID      func() string
}

func NewCoordinator(deps Deps, opts Options) *Coordinator {
	c := &Coordinator{
		carts:   deps.Carts,
		ledger:  deps.Ledger,
		orders:  deps.Orders,
		intents: deps.Intents,
		gateway: deps.Gateway,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logging.OrNop(deps.Logger).Named("checkout"),
		ttl:        opts.ReservationTTL,
		settleWait: opts.SettleWait,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if c.events == nil {
		c.events = events.Noop{}
	}
	if c.ttl <= 0 {
		c.ttl = 10 * time.Minute
	}
	if c.settleWait <= 0 {
		c.settleWait = 3 * time.Second
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Result lists the orders a checkout produced. Replayed is set when the payment
// had already been settled and the existing orders are returned instead.
type Result struct {
	OrderIDs         []string `json:"orderIds"`
	PaymentReference string   `json:"paymentReference,omitempty"`
	Replayed         bool     `json:"replayed,omitempty"`
}

// OnlineInput is what the buyer's browser returns after paying.
type OnlineInput struct {
	PaymentRef     string
	OrderIntentRef string
	Signature      string
	Shipping       domain.ShippingAddress
	Notes          string
}

// CapturedPayment is a capture reported by the gateway webhook.
type CapturedPayment struct {
	PaymentRef string
	IntentID   string
	Amount     int64
	Currency   string
	Method     string
}

// settlement describes one run of the shared protocol.
type settlement struct {
	path       string
	buyerID    string
	shipping   domain.ShippingAddress
	notes      string
	method     string
	paymentRef string
	intentID   string
	// verify runs after stock is held; nil skips the payment phase.
	verify func(ctx context.Context, total int64) (*gateway.Payment, error)
}

func (c *Coordinator) SettleOnline(ctx context.Context, who domain.Identity, in OnlineInput) (*Result, error) {
	if err := requireBuyer(who); err != nil {
		return nil, err
	}
	if in.PaymentRef == "" || in.OrderIntentRef == "" || in.Signature == "" {
		return nil, domain.Validationf("paymentRef, orderIntentRef and signature are required")
	}
	if missing := in.Shipping.Missing(); missing != "" {
		return nil, domain.Validationf("shipping %s is required", missing)
	}
	if res, err := c.replay(ctx, who.SubjectID, in.PaymentRef); res != nil || err != nil {
		return res, err
	}

	intent, err := c.intents.GetIntent(ctx, in.OrderIntentRef)
	if err != nil {
		return nil, err
	}
	if intent.BuyerID != who.SubjectID {
		return nil, domain.ErrAccessDenied
	}

	return c.settle(ctx, settlement{
		path:       pathOnline,
		buyerID:    who.SubjectID,
		shipping:   in.Shipping,
		notes:      in.Notes,
		method:     domain.PaymentMethodOnline,
		paymentRef: in.PaymentRef,
		intentID:   intent.ID,
		verify: func(ctx context.Context, total int64) (*gateway.Payment, error) {
			if !c.gateway.VerifySignature(intent.ID, in.PaymentRef, in.Signature) {
				return nil, domain.ErrInvalidSignature
			}
			p, err := c.gateway.FetchStatus(ctx, in.PaymentRef)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: payment %s unknown to gateway", domain.ErrPaymentNotCompleted, in.PaymentRef)
			}
			if err != nil {
				return nil, err
			}
			if p.OrderID != "" && p.OrderID != intent.ID {
				return nil, domain.ErrInvalidSignature
			}
			return p, requireCaptured(p, total)
		},
	})
}

func (c *Coordinator) SettleCashOnDelivery(ctx context.Context, who domain.Identity, shipping domain.ShippingAddress, notes string) (*Result, error) {
	if err := requireBuyer(who); err != nil {
		return nil, err
	}
	if missing := shipping.Missing(); missing != "" {
		return nil, domain.Validationf("shipping %s is required", missing)
	}
	return c.settle(ctx, settlement{
		path:     pathCOD,
		buyerID:  who.SubjectID,
		shipping: shipping,
		notes:    notes,
		method:   domain.PaymentMethodCashOnDelivery,
	})
}

// SettleFromWebhook completes a checkout the buyer's browser never confirmed.
// It needs the shipping address stored on the intent at create-order time.
func (c *Coordinator) SettleFromWebhook(ctx context.Context, p CapturedPayment) (*Result, error) {
	if res, err := c.replay(ctx, "", p.PaymentRef); res != nil || err != nil {
		return res, err
	}
	intent, err := c.intents.GetIntent(ctx, p.IntentID)
	if err != nil {
		return nil, fmt.Errorf("intent %s: %w", p.IntentID, err)
	}
	if intent.Shipping == nil {
		return nil, domain.Validationf("intent %s has no stored shipping address", intent.ID)
	}

	return c.settle(ctx, settlement{
		path:       pathWebhook,
		buyerID:    intent.BuyerID,
		shipping:   *intent.Shipping,
		method:     domain.PaymentMethodOnline,
		paymentRef: p.PaymentRef,
		intentID:   intent.ID,
		verify: func(_ context.Context, total int64) (*gateway.Payment, error) {
			payment := &gateway.Payment{
				ID: p.PaymentRef, OrderID: intent.ID, Status: gateway.StatusCaptured,
				Amount: p.Amount, Currency: p.Currency, Method: p.Method,
			}
			return payment, requireCaptured(payment, total)
		},
	})
}

func (c *Coordinator) settle(ctx context.Context, s settlement) (*Result, error) {
	a := newAttempt(s.path, c.logger.With(zap.String("path", s.path), zap.String("buyer_id", s.buyerID)))
	res, err := c.run(ctx, a, s)
	outcome := "success"
	switch {
	case err != nil:
		outcome = string(a.state)
		a.logger.Info("checkout failed", zap.String("state", string(a.state)), zap.Error(err))
	case res.Replayed:
		outcome = "replayed"
	}
	c.metrics.CheckoutAttempt(s.path, outcome)
	return res, err
}

func (c *Coordinator) run(ctx context.Context, a *attempt, s settlement) (*Result, error) {
	a.advance(StateCartLocked)
	cart, err := c.carts.Snapshot(ctx, s.buyerID)
	if err != nil {
		a.advance(StateReservationFailed)
		return nil, err
	}
	if cart.IsEmpty() {
		a.advance(StateReservationFailed)
		return c.replayOr(ctx, s, "", domain.ErrEmptyCart)
	}

	now := c.now()
	hold := domain.Reservation{
		ID:         c.newID(),
		BuyerID:    s.buyerID,
		PaymentRef: s.paymentRef,
		Status:     domain.ReservationHeld,
		ExpiresAt:  now.Add(c.ttl),
		CreatedAt:  now,
	}
	if err := c.ledger.OpenHold(ctx, hold); err != nil {
		a.advance(StateReservationFailed)
		return nil, fmt.Errorf("open hold: %w", err)
	}
	a.logger = a.logger.With(zap.String("hold_id", hold.ID))

	for _, line := range cart.SortedLines() {
		reserved, err := c.ledger.Reserve(ctx, hold.ID, line.ProductID, line.Quantity)
		if err != nil {
			c.release(ctx, hold.ID, "reservation_failed")
			a.advance(StateReservationFailed)
			return c.replayOr(ctx, s, hold.ID, err)
		}
		hold.Lines = append(hold.Lines, *reserved)
	}
	a.advance(StateReserved)

	var payment *gateway.Payment
	if s.verify != nil {
		a.advance(StateAwaitingPayment)
		payment, err = s.verify(ctx, hold.Total())
		if err != nil {
			c.release(ctx, hold.ID, "payment_invalid")
			a.advance(StatePaymentInvalid)
			return nil, err
		}
		a.advance(StateVerified)
	}

	orders, err := BuildOrders(cart, hold.Lines, OrderInput{
		BuyerID:          s.buyerID,
		ReservationID:    hold.ID,
		Shipping:         s.shipping,
		PaymentMethod:    s.method,
		PaymentStatus:    paymentStatus(payment),
		PaymentIntentID:  s.intentID,
		PaymentReference: s.paymentRef,
		Notes:            s.notes,
		Now:              now,
		NewID:            c.newID,
	})
	if err != nil {
		c.release(ctx, hold.ID, "persist_failed")
		a.advance(StatePersistFailed)
		return nil, err
	}

	in := orderrepo.SettleInput{BuyerID: s.buyerID, ReservationID: hold.ID, Orders: orders}
	if payment != nil {
		in.Payment = &domain.PaymentRecord{
			ID:               c.newID(),
			BuyerID:          s.buyerID,
			OrderIDs:         orderIDs(orders),
			PaymentIntentID:  s.intentID,
			PaymentReference: s.paymentRef,
			Amount:           payment.Amount,
			Currency:         orders[0].Currency,
			Status:           domain.PaymentRecordCaptured,
			Method:           paymentMethod(payment),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	if err := c.orders.Settle(ctx, in); err != nil {
		c.release(ctx, hold.ID, "persist_failed")
		if errors.Is(err, domain.ErrDuplicatePayment) {
			if res, replayErr := c.replay(ctx, replayOwner(s), s.paymentRef); res != nil || replayErr != nil {
				a.advance(StateMaterialized)
				a.advance(StateCleared)
				return res, replayErr
			}
		}
		a.advance(StatePersistFailed)
		return nil, err
	}
	a.advance(StateMaterialized)

	c.carts.Forget(ctx, s.buyerID)
	a.advance(StateCleared)

	ids := orderIDs(orders)
	a.logger.Info("checkout settled", zap.Strings("order_ids", ids), zap.Int64("total", orderTotal(orders)))
	c.publish(ctx, events.TypeOrderSettled, s, map[string]any{
		"order_ids":         ids,
		"payment_method":    s.method,
		"payment_reference": s.paymentRef,
		"total":             orderTotal(orders),
	})
	return &Result{OrderIDs: ids, PaymentReference: s.paymentRef}, nil
}

// replay returns the existing settlement for paymentRef, or nil when there is none.
// A non-empty owner must match the buyer that settled it.
func (c *Coordinator) replay(ctx context.Context, owner, paymentRef string) (*Result, error) {
	if paymentRef == "" {
		return nil, nil
	}
	record, err := c.orders.FindPaymentByReference(ctx, paymentRef)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if owner != "" && record.BuyerID != owner {
		return nil, domain.ErrAccessDenied
	}
	c.logger.Info("payment already settled", zap.String("payment_ref", paymentRef), zap.Strings("order_ids", record.OrderIDs))
	return &Result{OrderIDs: record.OrderIDs, PaymentReference: paymentRef, Replayed: true}, nil
}

// replayOr reports the concurrent winner's orders when a losing attempt could
// not reserve because the winner already consumed the cart or the stock. While
// another hold for the same payment is still open, it waits up to settleWait
// for that attempt to commit or release.
func (c *Coordinator) replayOr(ctx context.Context, s settlement, ownHold string, cause error) (*Result, error) {
	if s.paymentRef == "" {
		return nil, cause
	}
	deadline := time.NewTimer(c.settleWait)
	defer deadline.Stop()
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		// Holds are read before the record: a hold leaves the held state in the
		// same commit that writes the record.
		held, heldErr := c.ledger.HeldForPayment(ctx, s.paymentRef)
		res, err := c.replay(ctx, replayOwner(s), s.paymentRef)
		if err != nil {
			return nil, cause
		}
		if res != nil {
			return res, nil
		}
		if heldErr != nil || !otherHold(held, ownHold) {
			return nil, cause
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			c.logger.Warn("concurrent settlement still open", zap.String("payment_ref", s.paymentRef))
			return nil, fmt.Errorf("%w: payment %s", domain.ErrSettlementInProgress, s.paymentRef)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func otherHold(held []string, own string) bool {
	for _, id := range held {
		if id != own {
			return true
		}
	}
	return false
}

func (c *Coordinator) release(ctx context.Context, holdID, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	released, err := c.ledger.Release(ctx, holdID)
	if err != nil {
		c.logger.Error("release hold failed; sweeper will retry after expiry",
			zap.String("hold_id", holdID), zap.String("reason", reason), zap.Error(err))
		return
	}
	if released {
		c.metrics.ReservationReleased(reason)
	}
}

func (c *Coordinator) publish(ctx context.Context, t events.Type, s settlement, data any) {
	ev, err := events.New(t, s.buyerID, s.buyerID, data)
	if err == nil {
		err = c.events.Publish(ctx, ev)
	}
	if err != nil {
		c.logger.Warn("publish event", zap.String("event_type", string(t)), zap.Error(err))
	}
}

func replayOwner(s settlement) string {
	if s.path == pathWebhook {
		return ""
	}
	return s.buyerID
}

func requireBuyer(who domain.Identity) error {
	if who.SubjectID == "" {
		return domain.ErrAuthRequired
	}
	if who.Role != domain.RoleBuyer {
		return domain.ErrAccessDenied
	}
	return nil
}

func requireCaptured(p *gateway.Payment, total int64) error {
	if p.Status != gateway.StatusCaptured {
		return fmt.Errorf("%w: status %s", domain.ErrPaymentNotCompleted, p.Status)
	}
	if p.Amount < total {
		return fmt.Errorf("%w: captured %d of %d", domain.ErrPaymentNotCompleted, p.Amount, total)
	}
	return nil
}

func paymentStatus(p *gateway.Payment) domain.PaymentStatus {
	if p == nil {
		return domain.PaymentStatusPending
	}
	return domain.PaymentStatusCompleted
}

func paymentMethod(p *gateway.Payment) string {
	if p.Method == "" {
		return "card"
	}
	return p.Method
}
