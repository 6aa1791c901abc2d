package payment

import (
	"context"

	"designer-marketplace/internal/domain"
)

// Repository stores gateway intents created for buyers.
type Repository interface {
	// CreateIntent fails with domain.ErrAlreadyExists when the idempotency key is taken.
	CreateIntent(ctx context.Context, intent domain.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
	GetIntentByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentIntent, error)
}
