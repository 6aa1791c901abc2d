package product

import (
	"context"

	"designer-marketplace/internal/domain"
	"github.com/shopspring/decimal"
)

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByDesigner(ctx context.Context, designerID string) ([]domain.Product, error)
	SetPrice(ctx context.Context, id string, priceMinor int64) error
}

// Service gives designers a view of their own listings and live stock.
type Service struct {
	repo productRepo
}

func New(repo productRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListForDesigner(ctx context.Context, who domain.Identity) ([]domain.Product, error) {
	if err := requireDesigner(who); err != nil {
		return nil, err
	}
	return s.repo.ListByDesigner(ctx, who.SubjectID)
}

// SetPrice changes the listed price. Orders already placed keep the price they were reserved at.
func (s *Service) SetPrice(ctx context.Context, who domain.Identity, productID string, price decimal.Decimal) (*domain.Product, error) {
	if err := requireDesigner(who); err != nil {
		return nil, err
	}
	minor, err := domain.MinorUnits("price", price)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.DesignerID != who.SubjectID {
		return nil, domain.ErrAccessDenied
	}
	if err := s.repo.SetPrice(ctx, productID, minor); err != nil {
		return nil, err
	}
	p.PriceMinor = minor
	return p, nil
}

func requireDesigner(who domain.Identity) error {
	if who.SubjectID == "" {
		return domain.ErrAuthRequired
	}
	if who.Role != domain.RoleDesigner {
		return domain.ErrAccessDenied
	}
	return nil
}
