package product

import (
	"context"

	"designer-marketplace/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByDesigner(ctx context.Context, designerID string) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetPrice(ctx context.Context, id string, priceMinor int64) error
}
