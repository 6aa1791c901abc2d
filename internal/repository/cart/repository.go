package cart

import (
	"context"

	"designer-marketplace/internal/domain"
)

// Repository persists one cart per buyer. Mutations create the cart lazily and
// return the cart as stored after the change.
type Repository interface {
	Get(ctx context.Context, buyerID string) (*domain.Cart, error)
	AddLine(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error)
	// SetQuantity overwrites a line's quantity; a quantity <= 0 removes the line.
	SetQuantity(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, buyerID, productID string) (*domain.Cart, error)
	Delete(ctx context.Context, buyerID string) error
}
