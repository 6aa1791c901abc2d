package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"designer-marketplace/internal/db"
	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Ledger {
	return &postgresLedger{pool: pool, logger: logging.OrNop(logger).Named("inventory")}
}

func (l *postgresLedger) OpenHold(ctx context.Context, hold domain.Reservation) error {
	const q = `
INSERT INTO reservations (id, buyer_id, payment_ref, status, expires_at, created_at)
VALUES ($1, $2, NULLIF($3, ''), 'held', $4, $5)
`
	if _, err := l.pool.Exec(ctx, q, hold.ID, hold.BuyerID, hold.PaymentRef, hold.ExpiresAt, hold.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("open hold: %w", err)
	}
	return nil
}

func (l *postgresLedger) Reserve(ctx context.Context, holdID, productID string, quantity int) (*domain.ReservationLine, error) {
	if quantity < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}

	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status domain.ReservationStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM reservations WHERE id = $1 FOR UPDATE`, holdID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if status != domain.ReservationHeld {
		return nil, domain.ErrReservationExpired
	}

	line := domain.ReservationLine{ProductID: productID, Quantity: quantity}
	const decrement = `
UPDATE products
SET available_quantity = available_quantity - $2
WHERE id = $1 AND available_quantity >= $2
RETURNING designer_id, price_minor, currency
`
	err = tx.QueryRow(ctx, decrement, productID, quantity).Scan(&line.DesignerID, &line.PriceMinor, &line.Currency)
	if err != nil {
		if db.IsMalformedID(err) {
			return nil, domain.ErrNotFound
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		l.logger.Info("insufficient stock", zap.String("hold_id", holdID), zap.String("product_id", productID), zap.Int("quantity", quantity))
		return nil, &domain.InsufficientStockError{ProductID: productID}
	}

	const addLine = `
INSERT INTO reservation_lines (reservation_id, product_id, designer_id, quantity, price_minor, currency)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (reservation_id, product_id) DO UPDATE SET quantity = reservation_lines.quantity + EXCLUDED.quantity
`
	if _, err := tx.Exec(ctx, addLine, holdID, productID, line.DesignerID, quantity, line.PriceMinor, line.Currency); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &line, nil
}

func (l *postgresLedger) Release(ctx context.Context, holdID string) (bool, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `UPDATE reservations SET status = 'released' WHERE id = $1 AND status = 'held'`, holdID)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}

	rows, err := tx.Query(ctx, `SELECT product_id::text, quantity FROM reservation_lines WHERE reservation_id = $1 ORDER BY product_id`, holdID)
	if err != nil {
		return false, err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReservationLine, error) {
		var line domain.ReservationLine
		err := row.Scan(&line.ProductID, &line.Quantity)
		return line, err
	})
	if err != nil {
		return false, err
	}

	// Ascending product order keeps row locks consistent with concurrent releases.
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `UPDATE products SET available_quantity = available_quantity + $2 WHERE id = $1`, line.ProductID, line.Quantity); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	l.logger.Debug("hold released", zap.String("hold_id", holdID), zap.Int("lines", len(lines)))
	return true, nil
}

func (l *postgresLedger) HeldForPayment(ctx context.Context, paymentRef string) ([]string, error) {
	rows, err := l.pool.Query(ctx, `SELECT id::text FROM reservations WHERE payment_ref = $1 AND status = 'held'`, paymentRef)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (l *postgresLedger) Expired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `
SELECT id::text FROM reservations
WHERE status = 'held' AND expires_at < $1
ORDER BY expires_at
LIMIT $2
`
	rows, err := l.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (l *postgresLedger) Available(ctx context.Context, productID string) (int, error) {
	var n int
	err := l.pool.QueryRow(ctx, `SELECT available_quantity FROM products WHERE id = $1`, productID).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsMalformedID(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return n, nil
}
