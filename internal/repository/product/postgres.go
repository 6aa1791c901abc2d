package product

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

const productColumns = `id::text, designer_id, name, COALESCE(description, ''), price_minor, currency,
available_quantity, COALESCE(image_url, ''), created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("product_repo")}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsMalformedID(err) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) ListByDesigner(ctx context.Context, designerID string) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE designer_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, designerID)
	if err != nil {
		r.logger.Error("list products", zap.String("designer_id", designerID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, designer_id, name, description, price_minor, currency, available_quantity, image_url)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
ON CONFLICT (id) DO UPDATE SET
    designer_id = EXCLUDED.designer_id,
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_minor = EXCLUDED.price_minor,
    currency = EXCLUDED.currency,
    available_quantity = EXCLUDED.available_quantity,
    image_url = EXCLUDED.image_url
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.DesignerID,
		product.Name,
		product.Description,
		product.PriceMinor,
		product.Currency,
		product.AvailableQuantity,
		product.ImageURL,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert product", zap.String("name", product.Name), zap.Error(err))
		return nil, fmt.Errorf("upsert product %q: %w", product.Name, err)
	}
	r.logger.Debug("upserted product", zap.String("product_id", res.ID), zap.String("designer_id", res.DesignerID))
	return &res, nil
}

func (r *postgresRepo) SetPrice(ctx context.Context, id string, priceMinor int64) error {
	if priceMinor < 0 {
		return domain.Validationf("price must not be negative")
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE products SET price_minor = $2 WHERE id = $1`, id, priceMinor)
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

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.DesignerID, &p.Name, &p.Description, &p.PriceMinor, &p.Currency,
		&p.AvailableQuantity, &p.ImageURL, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
