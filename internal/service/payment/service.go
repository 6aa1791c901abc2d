package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/gateway"
	"designer-marketplace/internal/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type intentRepo interface {
	CreateIntent(ctx context.Context, intent domain.PaymentIntent) error
	GetIntentByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentIntent, error)
}

type recordRepo interface {
	FindPaymentByReference(ctx context.Context, paymentRef string) (*domain.PaymentRecord, error)
}

type intentCreator interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (*gateway.Intent, error)
}

// Service opens gateway payments for buyers and reports settled ones.
type Service struct {
	intents  intentRepo
	records  recordRepo
	gateway  intentCreator
	currency string
	logger   *zap.Logger
}

func New(intents intentRepo, records recordRepo, gw intentCreator, currency string, logger *zap.Logger) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		intents:  intents,
		records:  records,
		gateway:  gw,
		currency: currency,
		logger:   logging.OrNop(logger).Named("payment"),
	}
}

// CreateOrderInput carries the amount in major units, e.g. "1499.50".
type CreateOrderInput struct {
	Amount   decimal.Decimal         `json:"amount"`
	OrderRef string                  `json:"orderRef"`
	Shipping *domain.ShippingAddress `json:"shippingInfo,omitempty"`
}

type CreateOrderResult struct {
	OrderIntentID string `json:"orderIntentId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// CreateOrder opens a gateway intent for the buyer. Repeating a call with the
// same orderRef returns the intent created the first time.
func (s *Service) CreateOrder(ctx context.Context, who domain.Identity, in CreateOrderInput) (*CreateOrderResult, error) {
	if who.SubjectID == "" {
		return nil, domain.ErrAuthRequired
	}
	if who.Role != domain.RoleBuyer {
		return nil, domain.ErrAccessDenied
	}
	amount, err := minorUnits(in.Amount)
	if err != nil {
		return nil, err
	}
	orderRef := strings.TrimSpace(in.OrderRef)
	if orderRef == "" {
		return nil, domain.Validationf("orderRef is required")
	}
	if in.Shipping != nil {
		if missing := in.Shipping.Missing(); missing != "" {
			return nil, domain.Validationf("shipping %s is required", missing)
		}
	}

	key := idempotencyKey(who.SubjectID, orderRef)
	if existing, err := s.intents.GetIntentByKey(ctx, key); err == nil {
		return result(existing), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	remote, err := s.gateway.CreateIntent(ctx, amount, s.currency, key)
	if err != nil {
		return nil, err
	}
	intent := domain.PaymentIntent{
		ID:             remote.ID,
		BuyerID:        who.SubjectID,
		OrderRef:       orderRef,
		IdempotencyKey: key,
		Amount:         remote.Amount,
		Currency:       remote.Currency,
		Shipping:       in.Shipping,
	}
	if intent.Amount == 0 {
		intent.Amount = amount
	}
	if intent.Currency == "" {
		intent.Currency = s.currency
	}
	if err := s.intents.CreateIntent(ctx, intent); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		// a concurrent call with the same orderRef stored it first
		existing, getErr := s.intents.GetIntentByKey(ctx, key)
		if getErr != nil {
			return nil, getErr
		}
		return result(existing), nil
	}
	s.logger.Info("payment intent created",
		zap.String("intent_id", intent.ID), zap.String("buyer_id", who.SubjectID), zap.Int64("amount", intent.Amount))
	return result(&intent), nil
}

// Status returns the settled payment record for paymentRef, visible only to its buyer.
func (s *Service) Status(ctx context.Context, who domain.Identity, paymentRef string) (*domain.PaymentRecord, error) {
	if who.SubjectID == "" {
		return nil, domain.ErrAuthRequired
	}
	record, err := s.records.FindPaymentByReference(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if record.BuyerID != who.SubjectID {
		return nil, domain.ErrAccessDenied
	}
	return record, nil
}

func minorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, domain.Validationf("amount must be greater than zero")
	}
	return domain.MinorUnits("amount", amount)
}

func idempotencyKey(buyerID, orderRef string) string {
	sum := sha256.Sum256([]byte(buyerID + "|" + orderRef))
	return hex.EncodeToString(sum[:])
}

func result(intent *domain.PaymentIntent) *CreateOrderResult {
	return &CreateOrderResult{OrderIntentID: intent.ID, Amount: intent.Amount, Currency: intent.Currency}
}
