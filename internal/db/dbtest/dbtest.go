// Package dbtest provides a migrated, truncated Postgres pool for integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"designer-marketplace/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool connects to TEST_DB_DSN, applies migrations and empties every table.
// The test is skipped when TEST_DB_DSN is unset.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	const truncate = `TRUNCATE orders, payment_records, payment_intents, reservation_lines, reservations,
cart_lines, carts, products, tokens RESTART IDENTITY CASCADE`
	if _, err := pool.Exec(ctx, truncate); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// InsertProduct adds a product row and returns its id.
func InsertProduct(t *testing.T, pool *pgxpool.Pool, designerID string, priceMinor int64, stock int) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
INSERT INTO products (designer_id, name, price_minor, currency, available_quantity)
VALUES ($1, 'Block print kurta', $2, 'INR', $3)
RETURNING id::text`, designerID, priceMinor, stock).Scan(&id)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}
