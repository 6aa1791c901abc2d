package cart

import (
	"context"
	"errors"
	"testing"

	"designer-marketplace/internal/db/dbtest"
	"designer-marketplace/internal/domain"
)

func TestPostgres_AddIncrementsExistingLine(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)
	productID := dbtest.InsertProduct(t, pool, "designer-1", 100, 10)

	if _, err := repo.Get(ctx, "buyer-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no cart before first add, got %v", err)
	}
	if _, err := repo.AddLine(ctx, "buyer-1", productID, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	cart, err := repo.AddLine(ctx, "buyer-1", productID, 2)
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", cart.Lines)
	}
}

func TestPostgres_SetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)
	a := dbtest.InsertProduct(t, pool, "designer-1", 100, 10)
	b := dbtest.InsertProduct(t, pool, "designer-2", 200, 10)

	if _, err := repo.AddLine(ctx, "buyer-1", a, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if _, err := repo.AddLine(ctx, "buyer-1", b, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	cart, err := repo.SetQuantity(ctx, "buyer-1", a, 4)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if cart.Lines[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %+v", cart.Lines)
	}

	cart, err = repo.SetQuantity(ctx, "buyer-1", a, 0)
	if err != nil {
		t.Fatalf("SetQuantity zero: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].ProductID != b {
		t.Fatalf("expected only %s left, got %+v", b, cart.Lines)
	}

	if _, err := repo.RemoveLine(ctx, "buyer-1", a); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing missing line, got %v", err)
	}
	if err := repo.Delete(ctx, "buyer-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "buyer-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cart gone, got %v", err)
	}
}
