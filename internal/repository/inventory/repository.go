package inventory

import (
	"context"
	"time"

	"designer-marketplace/internal/domain"
)

// Ledger owns available stock. Stock leaves a product only through Reserve and
// returns only through Release, both of which are atomic against concurrent callers.
type Ledger interface {
	// OpenHold records an empty hold that subsequent Reserve calls attach lines to.
	OpenHold(ctx context.Context, hold domain.Reservation) error
	// Reserve decrements stock for productID by quantity in one conditional write
	// and returns the line priced at that instant. It fails with
	// *domain.InsufficientStockError when fewer than quantity units remain.
	Reserve(ctx context.Context, holdID, productID string, quantity int) (*domain.ReservationLine, error)
	// Release restocks every line of a held hold. It reports false when the hold
	// was already committed or released, so stock is returned at most once.
	Release(ctx context.Context, holdID string) (bool, error)
	HeldForPayment(ctx context.Context, paymentRef string) ([]string, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]string, error)
	Available(ctx context.Context, productID string) (int, error)
}
