package product

import (
	"context"
	"errors"
	"testing"

	"designer-marketplace/internal/db/dbtest"
	"designer-marketplace/internal/domain"
)

func TestPostgres_UpsertGetAndList(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	p, err := repo.Upsert(ctx, domain.Product{
		DesignerID:        "designer-1",
		Name:              "Indigo scarf",
		PriceMinor:        149900,
		Currency:          "INR",
		AvailableQuantity: 4,
	})
	if err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected ID set")
	}

	p.Description = "hand dyed"
	p.AvailableQuantity = 6
	updated, err := repo.Upsert(ctx, *p)
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if updated.ID != p.ID {
		t.Fatalf("expected same ID after update")
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Description != "hand dyed" || got.AvailableQuantity != 6 || got.PriceMinor != 149900 {
		t.Fatalf("unexpected product %+v", got)
	}

	list, err := repo.ListByDesigner(ctx, "designer-1")
	if err != nil {
		t.Fatalf("ListByDesigner: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 product, got %d", len(list))
	}
}

func TestPostgres_SetPrice(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)
	id := dbtest.InsertProduct(t, pool, "designer-1", 1000, 1)

	if err := repo.SetPrice(ctx, id, 2500); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PriceMinor != 2500 {
		t.Fatalf("expected price 2500, got %d", got.PriceMinor)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	if err := repo.SetPrice(ctx, missing, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
