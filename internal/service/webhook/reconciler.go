package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/events"
	"designer-marketplace/internal/logging"
	"designer-marketplace/internal/metrics"
	"designer-marketplace/internal/service/checkout"
	"go.uber.org/zap"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

type verifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

type settler interface {
	SettleFromWebhook(ctx context.Context, p checkout.CapturedPayment) (*checkout.Result, error)
}

type paymentStore interface {
	MarkPaymentFailed(ctx context.Context, paymentRef string) (bool, error)
}

type holds interface {
	HeldForPayment(ctx context.Context, paymentRef string) ([]string, error)
	Release(ctx context.Context, holdID string) (bool, error)
}

type deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Notification is the subset of the gateway webhook body we act on.
type Notification struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
	Status   string `json:"status"`
}

type Deps struct {
	Gateway  verifier
	Settler  settler
	Payments paymentStore
	Holds    holds
	// Dedupe is optional.
	Dedupe  deduper
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Reconciler applies asynchronous gateway notifications. Once the signature
// checks out, processing problems are logged and never reported back, so the
// gateway does not retry a delivery we cannot fix.
type Reconciler struct {
	gateway  verifier
	settler  settler
	payments paymentStore
	holds    holds
	dedupe   deduper
	events   events.Publisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func New(deps Deps) *Reconciler {
	r := &Reconciler{
		gateway:  deps.Gateway,
		settler:  deps.Settler,
		payments: deps.Payments,
		holds:    deps.Holds,
		dedupe:   deps.Dedupe,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   logging.OrNop(deps.Logger).Named("webhook"),
	}
	if r.events == nil {
		r.events = events.Noop{}
	}
	return r
}

// Handle verifies body against signature and applies the event. Only a bad
// signature is returned as an error.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) error {
	if signature == "" || !r.gateway.VerifyWebhook(body, signature) {
		r.metrics.WebhookEvent("unknown", "invalid_signature")
		return domain.ErrInvalidSignature
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		r.logger.Warn("undecodable webhook body", zap.Error(err))
		r.metrics.WebhookEvent("unknown", "malformed")
		return nil
	}
	entity := n.Payload.Payment.Entity
	log := r.logger.With(zap.String("event", n.Event), zap.String("payment_ref", entity.ID))

	if n.Event != EventPaymentCaptured && n.Event != EventPaymentFailed {
		log.Debug("ignoring webhook event")
		r.metrics.WebhookEvent(n.Event, "ignored")
		return nil
	}
	if entity.ID == "" {
		log.Warn("webhook without payment id")
		r.metrics.WebhookEvent(n.Event, "malformed")
		return nil
	}

	key := n.Event + ":" + entity.ID
	if !r.claim(ctx, key, log) {
		r.metrics.WebhookEvent(n.Event, "duplicate")
		return nil
	}

	var err error
	switch n.Event {
	case EventPaymentCaptured:
		err = r.captured(ctx, entity, log)
	case EventPaymentFailed:
		err = r.failed(ctx, entity, log)
	}
	if err != nil {
		log.Error("webhook processing failed", zap.Error(err))
		r.metrics.WebhookEvent(n.Event, "error")
		r.forget(ctx, key, log)
		return nil
	}
	r.metrics.WebhookEvent(n.Event, "processed")
	return nil
}

func (r *Reconciler) captured(ctx context.Context, p PaymentEntity, log *zap.Logger) error {
	if p.OrderID == "" {
		return domain.Validationf("captured payment %s carries no order id", p.ID)
	}
	res, err := r.settler.SettleFromWebhook(ctx, checkout.CapturedPayment{
		PaymentRef: p.ID,
		IntentID:   p.OrderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Method:     p.Method,
	})
	if errors.Is(err, domain.ErrEmptyCart) {
		// The buyer's cart is gone and no settlement matches this payment.
		// Nothing can be ordered; the capture needs a manual refund.
		log.Warn("captured payment has no cart to settle", zap.String("intent_id", p.OrderID))
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("captured payment reconciled", zap.Strings("order_ids", res.OrderIDs), zap.Bool("replayed", res.Replayed))
	return nil
}

func (r *Reconciler) failed(ctx context.Context, p PaymentEntity, log *zap.Logger) error {
	marked, err := r.payments.MarkPaymentFailed(ctx, p.ID)
	if err != nil {
		return err
	}

	ids, err := r.holds.HeldForPayment(ctx, p.ID)
	if err != nil {
		return err
	}
	released := 0
	for _, id := range ids {
		ok, err := r.holds.Release(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			released++
			r.metrics.ReservationReleased("payment_failed")
		}
	}
	log.Info("payment failure applied", zap.Bool("record_marked", marked), zap.Int("holds_released", released))

	ev, err := events.New(events.TypePaymentFailed, p.ID, "", map[string]any{
		"payment_reference": p.ID,
		"intent_id":         p.OrderID,
		"record_marked":     marked,
	})
	if err == nil {
		err = r.events.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn("publish payment failure", zap.Error(err))
	}
	return nil
}

// claim reports whether this delivery should be processed. A dedupe outage
// lets it through; the settle path is idempotent on its own.
func (r *Reconciler) claim(ctx context.Context, key string, log *zap.Logger) bool {
	if r.dedupe == nil {
		return true
	}
	ok, err := r.dedupe.Claim(ctx, key)
	if err != nil {
		log.Warn("webhook dedupe unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (r *Reconciler) forget(ctx context.Context, key string, log *zap.Logger) {
	if r.dedupe == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := r.dedupe.Forget(ctx, key); err != nil {
		log.Warn("webhook dedupe forget", zap.Error(err))
	}
}
