package order

import (
	"context"

	"designer-marketplace/internal/domain"
)

// SettleInput is everything one checkout commits at once.
type SettleInput struct {
	BuyerID       string
	ReservationID string
	Orders        []domain.Order
	// Payment is nil for cash-on-delivery checkouts.
	Payment *domain.PaymentRecord
}

type Repository interface {
	// Settle commits the hold, records the payment, inserts the orders and
	// deletes the buyer's cart as one unit. A payment reference that was already
	// settled yields domain.ErrDuplicatePayment and nothing is written. A hold
	// that is no longer held, or whose expiry has passed, yields
	// domain.ErrReservationExpired.
	Settle(ctx context.Context, in SettleInput) error
	FindPaymentByReference(ctx context.Context, paymentRef string) (*domain.PaymentRecord, error)
	// MarkPaymentFailed flags the payment record and its orders as failed.
	// It reports false when no record exists for paymentRef.
	MarkPaymentFailed(ctx context.Context, paymentRef string) (bool, error)

	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, status domain.OrderStatus) ([]domain.Order, error)
	ListByDesigner(ctx context.Context, designerID string, status domain.OrderStatus) ([]domain.Order, error)
	// UpdateStatus moves an order from one fulfillment status to another.
	// Moving to cancelled returns the ordered quantity to stock in the same write.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
	SetTracking(ctx context.Context, id, trackingNumber string) error
}
