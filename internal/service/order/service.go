package order

import (
	"context"
	"strings"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/events"
	"designer-marketplace/internal/logging"
	"go.uber.org/zap"
)

type orderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, status domain.OrderStatus) ([]domain.Order, error)
	ListByDesigner(ctx context.Context, designerID string, status domain.OrderStatus) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
	SetTracking(ctx context.Context, id, trackingNumber string) error
}

// Service serves order history and the designer fulfillment workflow.
type Service struct {
	repo   orderRepo
	events events.Publisher
	logger *zap.Logger
}

func New(repo orderRepo, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{repo: repo, events: publisher, logger: logging.OrNop(logger).Named("orders")}
}

// Filter narrows order listings. Zero values match everything.
type Filter struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
}

func (s *Service) ListForBuyer(ctx context.Context, who domain.Identity, f Filter) ([]domain.Order, error) {
	if err := requireRole(who, domain.RoleBuyer); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListByBuyer(ctx, who.SubjectID, f.Status)
	if err != nil {
		return nil, err
	}
	return f.apply(orders), nil
}

func (s *Service) ListForDesigner(ctx context.Context, who domain.Identity, f Filter) ([]domain.Order, error) {
	if err := requireRole(who, domain.RoleDesigner); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListByDesigner(ctx, who.SubjectID, f.Status)
	if err != nil {
		return nil, err
	}
	return f.apply(orders), nil
}

// UpdateStatus moves a designer's order through fulfillment. Cancelling
// returns the quantity to stock.
func (s *Service) UpdateStatus(ctx context.Context, who domain.Identity, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, domain.Validationf("unknown order status %q", next)
	}
	current, err := s.owned(ctx, who, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == next {
		return current, nil
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, domain.ErrInvalidTransition
	}
	if err := s.repo.UpdateStatus(ctx, orderID, current.Status, next); err != nil {
		return nil, err
	}
	s.logger.Info("order status changed",
		zap.String("order_id", orderID), zap.String("from", string(current.Status)), zap.String("to", string(next)))

	if next == domain.OrderStatusCancelled {
		s.publishCancelled(ctx, current)
	}
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) SetTracking(ctx context.Context, who domain.Identity, orderID, trackingNumber string) (*domain.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, domain.Validationf("trackingNumber is required")
	}
	if _, err := s.owned(ctx, who, orderID); err != nil {
		return nil, err
	}
	if err := s.repo.SetTracking(ctx, orderID, trackingNumber); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orderID)
}

// owned loads an order the calling designer sold.
func (s *Service) owned(ctx context.Context, who domain.Identity, orderID string) (*domain.Order, error) {
	if err := requireRole(who, domain.RoleDesigner); err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DesignerID != who.SubjectID {
		return nil, domain.ErrAccessDenied
	}
	return o, nil
}

func (s *Service) publishCancelled(ctx context.Context, o *domain.Order) {
	ev, err := events.New(events.TypeOrderCancelled, o.BuyerID, o.BuyerID, map[string]any{
		"order_id":   o.ID,
		"product_id": o.ProductID,
		"quantity":   o.Quantity,
	})
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("publish order cancellation", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (f Filter) validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return domain.Validationf("unknown order status %q", f.Status)
	}
	switch f.PaymentStatus {
	case "", domain.PaymentStatusPending, domain.PaymentStatusCompleted, domain.PaymentStatusFailed:
		return nil
	}
	return domain.Validationf("unknown payment status %q", f.PaymentStatus)
}

func (f Filter) apply(orders []domain.Order) []domain.Order {
	if f.PaymentStatus == "" {
		return orders
	}
	out := orders[:0]
	for _, o := range orders {
		if o.PaymentStatus == f.PaymentStatus {
			out = append(out, o)
		}
	}
	return out
}

func requireRole(who domain.Identity, role domain.Role) error {
	if who.SubjectID == "" {
		return domain.ErrAuthRequired
	}
	if who.Role != role {
		return domain.ErrAccessDenied
	}
	return nil
}
