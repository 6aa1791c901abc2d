package payment

import (
	"context"
	"errors"

	"designer-marketplace/internal/db"
	"designer-marketplace/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) CreateIntent(ctx context.Context, intent domain.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (id, buyer_id, order_ref, idempotency_key, amount, currency, shipping, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.pool.Exec(ctx, q, intent.ID, intent.BuyerID, intent.OrderRef, intent.IdempotencyKey,
		intent.Amount, intent.Currency, intent.Shipping, intent.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *postgresRepo) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *postgresRepo) GetIntentByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentIntent, error) {
	return r.get(ctx, `idempotency_key = $1`, idempotencyKey)
}

func (r *postgresRepo) get(ctx context.Context, where string, arg string) (*domain.PaymentIntent, error) {
	q := `SELECT id, buyer_id, order_ref, idempotency_key, amount, currency, shipping, created_at FROM payment_intents WHERE ` + where
	var in domain.PaymentIntent
	err := r.pool.QueryRow(ctx, q, arg).Scan(&in.ID, &in.BuyerID, &in.OrderRef, &in.IdempotencyKey,
		&in.Amount, &in.Currency, &in.Shipping, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &in, nil
}
