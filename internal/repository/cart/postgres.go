package cart

import (
	"context"
	"errors"

	"designer-marketplace/internal/db"
	"designer-marketplace/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, buyerID string) (*domain.Cart, error) {
	return load(ctx, r.pool, buyerID)
}

func (r *postgresRepo) AddLine(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	return r.mutate(ctx, buyerID, func(tx pgx.Tx) error {
		const q = `
INSERT INTO cart_lines (buyer_id, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (buyer_id, product_id) DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
`
		_, err := tx.Exec(ctx, q, buyerID, productID, quantity)
		return err
	})
}

func (r *postgresRepo) SetQuantity(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return r.RemoveLine(ctx, buyerID, productID)
	}
	return r.mutate(ctx, buyerID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE cart_lines SET quantity = $3 WHERE buyer_id = $1 AND product_id = $2`, buyerID, productID, quantity)
		return requireRow(cmd, err)
	})
}

func (r *postgresRepo) RemoveLine(ctx context.Context, buyerID, productID string) (*domain.Cart, error) {
	return r.mutate(ctx, buyerID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE buyer_id = $1 AND product_id = $2`, buyerID, productID)
		return requireRow(cmd, err)
	})
}

func (r *postgresRepo) Delete(ctx context.Context, buyerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE buyer_id = $1`, buyerID)
	return err
}

func (r *postgresRepo) mutate(ctx context.Context, buyerID string, change func(pgx.Tx) error) (*domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const ensure = `
INSERT INTO carts (buyer_id) VALUES ($1)
ON CONFLICT (buyer_id) DO UPDATE SET updated_at = now()
`
	if _, err := tx.Exec(ctx, ensure, buyerID); err != nil {
		return nil, err
	}
	if err := change(tx); err != nil {
		var pgErr *pgconn.PgError
		if db.IsMalformedID(err) || (errors.As(err, &pgErr) && pgErr.Code == "23503") {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	cart, err := load(ctx, tx, buyerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cart, nil
}

func load(ctx context.Context, q querier, buyerID string) (*domain.Cart, error) {
	cart := domain.Cart{BuyerID: buyerID}
	err := q.QueryRow(ctx, `SELECT created_at, updated_at FROM carts WHERE buyer_id = $1`, buyerID).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT product_id::text, quantity, added_at
FROM cart_lines
WHERE buyer_id = $1
ORDER BY added_at, product_id
`, buyerID)
	if err != nil {
		return nil, err
	}
	cart.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartLine, error) {
		var line domain.CartLine
		err := row.Scan(&line.ProductID, &line.Quantity, &line.AddedAt)
		return line, err
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func requireRow(cmd pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
