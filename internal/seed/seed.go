package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/repository/token"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog is demo data for manual testing.
type Catalog struct {
	Products []domain.Product
	Tokens   []token.Token
}

// Demo returns two designers' products and bearer tokens for one buyer and
// both designers. Tokens are valid for a year from now.
func Demo(now time.Time) Catalog {
	expires := now.Add(365 * 24 * time.Hour)
	return Catalog{
		Products: []domain.Product{
			{
				ID:                "6f1c1f0e-5a8e-4c1e-9a57-000000000001",
				DesignerID:        "designer-anaya",
				Name:              "Indigo Block Print Kurta",
				Description:       "Hand block printed cotton, natural indigo",
				PriceMinor:        249900,
				Currency:          "INR",
				AvailableQuantity: 15,
			},
			{
				ID:                "6f1c1f0e-5a8e-4c1e-9a57-000000000002",
				DesignerID:        "designer-anaya",
				Name:              "Bandhani Silk Dupatta",
				Description:       "Tie-dyed silk from Kutch",
				PriceMinor:        189000,
				Currency:          "INR",
				AvailableQuantity: 6,
			},
			{
				ID:                "6f1c1f0e-5a8e-4c1e-9a57-000000000003",
				DesignerID:        "designer-vikram",
				Name:              "Khadi Nehru Jacket",
				PriceMinor:        329900,
				Currency:          "INR",
				AvailableQuantity: 1,
			},
		},
		Tokens: []token.Token{
			{Token: "demo-buyer-token", SubjectID: "buyer-demo", Role: domain.RoleBuyer, ExpiresAt: expires},
			{Token: "demo-anaya-token", SubjectID: "designer-anaya", Role: domain.RoleDesigner, ExpiresAt: expires},
			{Token: "demo-vikram-token", SubjectID: "designer-vikram", Role: domain.RoleDesigner, ExpiresAt: expires},
		},
	}
}

// Apply inserts the demo catalog into Postgres. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	c := Demo(time.Now().UTC())
	for _, p := range c.Products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	for _, t := range c.Tokens {
		if err := upsertToken(ctx, pool, t); err != nil {
			return fmt.Errorf("upsert token for %s: %w", t.SubjectID, err)
		}
	}
	return nil
}

type productWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type tokenWriter interface {
	Create(ctx context.Context, t token.Token) error
}

// Load writes a catalog through repositories, e.g. into the in-memory store.
func Load(ctx context.Context, products productWriter, tokens tokenWriter, c Catalog) error {
	for _, p := range c.Products {
		if _, err := products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	for _, t := range c.Tokens {
		if err := tokens.Create(ctx, t); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("create token for %s: %w", t.SubjectID, err)
		}
	}
	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p domain.Product) error {
	const q = `
INSERT INTO products (id, designer_id, name, description, price_minor, currency, available_quantity)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_minor = EXCLUDED.price_minor,
    currency = EXCLUDED.currency
`
	_, err := pool.Exec(ctx, q, p.ID, p.DesignerID, p.Name, p.Description, p.PriceMinor, p.Currency, p.AvailableQuantity)
	return err
}

func upsertToken(ctx context.Context, pool *pgxpool.Pool, t token.Token) error {
	const q = `
INSERT INTO tokens (token, subject_id, role, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token) DO UPDATE SET expires_at = EXCLUDED.expires_at
`
	_, err := pool.Exec(ctx, q, t.Token, t.SubjectID, string(t.Role), t.ExpiresAt)
	return err
}
