package seed

import (
	"context"
	"testing"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/repository/memory"
)

func TestLoadIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := Demo(time.Now())

	for i := 0; i < 2; i++ {
		if err := Load(ctx, store.Products(), store.Tokens(), c); err != nil {
			t.Fatalf("load #%d: %v", i+1, err)
		}
	}

	products, err := store.Products().ListByDesigner(ctx, "designer-anaya")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products for designer-anaya, got %d", len(products))
	}
	tok, err := store.Tokens().Get(ctx, "demo-buyer-token")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if tok.Role != domain.RoleBuyer || !tok.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected token %+v", tok)
	}
}
