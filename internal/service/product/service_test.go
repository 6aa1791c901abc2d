package product

import (
	"context"
	"errors"
	"testing"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/repository/memory"
	"github.com/shopspring/decimal"
)

func TestDesignerListingsAndPrice(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mine, err := store.Products().Upsert(ctx, domain.Product{DesignerID: "d1", Name: "Phulkari shawl", PriceMinor: 5000, Currency: "INR", AvailableQuantity: 2})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	theirs, err := store.Products().Upsert(ctx, domain.Product{DesignerID: "d2", Name: "Ajrak scarf", PriceMinor: 3000, Currency: "INR", AvailableQuantity: 1})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := New(store.Products())
	d1 := domain.Identity{SubjectID: "d1", Role: domain.RoleDesigner}

	list, err := svc.ListForDesigner(ctx, d1)
	if err != nil || len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("unexpected listing %+v err=%v", list, err)
	}

	p, err := svc.SetPrice(ctx, d1, mine.ID, decimal.RequireFromString("62.50"))
	if err != nil {
		t.Fatalf("set price: %v", err)
	}
	if p.PriceMinor != 6250 {
		t.Fatalf("expected 6250, got %d", p.PriceMinor)
	}

	if _, err := svc.SetPrice(ctx, d1, theirs.ID, decimal.NewFromInt(1)); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, err := svc.SetPrice(ctx, d1, mine.ID, decimal.NewFromInt(-1)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.SetPrice(ctx, d1, mine.ID, decimal.RequireFromString("184467440737095516.17")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected out-of-range price to be rejected, got %v", err)
	}
	if _, err := svc.ListForDesigner(ctx, domain.Identity{SubjectID: "b", Role: domain.RoleBuyer}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected buyers to be refused, got %v", err)
	}
}
