package order

import (
	"context"
	"errors"
	"fmt"

	"designer-marketplace/internal/db"
	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const orderColumns = `id::text, buyer_id, product_id::text, designer_id, quantity, unit_price_minor, total_price,
currency, shipping_address, status, payment_status, payment_method, payment_intent_id, payment_reference,
COALESCE(reservation_id::text, ''), COALESCE(tracking_number, ''), COALESCE(notes, ''), created_at, updated_at`

const paymentColumns = `id::text, buyer_id, order_ids, payment_intent_id, payment_reference, amount, currency,
status, method, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("order_repo")}
}

func (r *postgresRepo) Settle(ctx context.Context, in SettleInput) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `UPDATE reservations SET status = 'committed' WHERE id = $1 AND status = 'held' AND expires_at >= now()`, in.ReservationID)
	if err != nil {
		return fmt.Errorf("commit hold: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrReservationExpired
	}

	if p := in.Payment; p != nil {
		const insertPayment = `
INSERT INTO payment_records (id, buyer_id, order_ids, payment_intent_id, payment_reference, amount, currency, status, method, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
		_, err := tx.Exec(ctx, insertPayment, p.ID, p.BuyerID, p.OrderIDs, p.PaymentIntentID, p.PaymentReference,
			p.Amount, p.Currency, p.Status, p.Method, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return domain.ErrDuplicatePayment
			}
			return fmt.Errorf("insert payment record: %w", err)
		}
	}

	const insertOrder = `
INSERT INTO orders (id, buyer_id, product_id, designer_id, quantity, unit_price_minor, total_price, currency,
    shipping_address, status, payment_status, payment_method, payment_intent_id, payment_reference,
    reservation_id, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, '')::uuid, NULLIF($16, ''), $17, $18)
`
	batch := &pgx.Batch{}
	for _, o := range in.Orders {
		batch.Queue(insertOrder, o.ID, o.BuyerID, o.ProductID, o.DesignerID, o.Quantity, o.UnitPriceMinor, o.TotalPrice,
			o.Currency, o.ShippingAddress, o.Status, o.PaymentStatus, o.PaymentMethod, o.PaymentIntentID,
			o.PaymentReference, o.ReservationID, o.Notes, o.CreatedAt, o.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert orders: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE buyer_id = $1`, in.BuyerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Info("checkout settled",
		zap.String("buyer_id", in.BuyerID),
		zap.String("reservation_id", in.ReservationID),
		zap.Int("orders", len(in.Orders)),
	)
	return nil
}

func (r *postgresRepo) FindPaymentByReference(ctx context.Context, paymentRef string) (*domain.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payment_records WHERE payment_reference = $1`
	var p domain.PaymentRecord
	err := r.pool.QueryRow(ctx, q, paymentRef).Scan(&p.ID, &p.BuyerID, &p.OrderIDs, &p.PaymentIntentID,
		&p.PaymentReference, &p.Amount, &p.Currency, &p.Status, &p.Method, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) MarkPaymentFailed(ctx context.Context, paymentRef string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `UPDATE payment_records SET status = 'failed', updated_at = now() WHERE payment_reference = $1`, paymentRef)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET payment_status = 'failed', updated_at = now() WHERE payment_reference = $1`, paymentRef); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsMalformedID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByBuyer(ctx context.Context, buyerID string, status domain.OrderStatus) ([]domain.Order, error) {
	return r.list(ctx, "buyer_id", buyerID, status)
}

func (r *postgresRepo) ListByDesigner(ctx context.Context, designerID string, status domain.OrderStatus) ([]domain.Order, error) {
	return r.list(ctx, "designer_id", designerID, status)
}

func (r *postgresRepo) list(ctx context.Context, ownerColumn, ownerID string, status domain.OrderStatus) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE ` + ownerColumn + ` = $1 AND ($2 = '' OR status = $2) ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, ownerID, string(status))
	if err != nil {
		r.logger.Error("list orders", zap.String(ownerColumn, ownerID), zap.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return domain.Order{}, err
		}
		return *o, nil
	})
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var productID string
	var quantity int
	err = tx.QueryRow(ctx, `
UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING product_id::text, quantity
`, id, from, to).Scan(&productID, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInvalidTransition
		}
		return err
	}
	if to == domain.OrderStatusCancelled {
		if _, err := tx.Exec(ctx, `UPDATE products SET available_quantity = available_quantity + $2 WHERE id = $1`, productID, quantity); err != nil {
			return fmt.Errorf("restock cancelled order: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) SetTracking(ctx context.Context, id, trackingNumber string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE orders SET tracking_number = $2, updated_at = now() WHERE id = $1`, id, trackingNumber)
	if err != nil {
		if db.IsMalformedID(err) {
			return domain.ErrNotFound
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.ProductID, &o.DesignerID, &o.Quantity, &o.UnitPriceMinor, &o.TotalPrice,
		&o.Currency, &o.ShippingAddress, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentIntentID,
		&o.PaymentReference, &o.ReservationID, &o.TrackingNumber, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
