package cart

import (
	"context"
	"errors"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	cartrepo "designer-marketplace/internal/repository/cart"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type cartRepo interface {
	Get(ctx context.Context, buyerID string) (*domain.Cart, error)
	AddLine(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, buyerID, productID string) (*domain.Cart, error)
	Delete(ctx context.Context, buyerID string) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type cartCache interface {
	Get(ctx context.Context, buyerID string) (*domain.Cart, error)
	Version(ctx context.Context, buyerID string) (int64, error)
	Set(ctx context.Context, cart *domain.Cart, version int64) (bool, error)
	Delete(ctx context.Context, buyerID string) error
}

const loadTimeout = 5 * time.Second

// Service owns buyer carts. Reads may be served from cache; Snapshot always
// reads the store because checkout must see the committed cart.
type Service struct {
	repo     cartRepo
	products productRepo
	cache    cartCache
	sfg      singleflight.Group
	logger   *zap.Logger
}

// New builds the service. cache may be nil.
func New(repo cartRepo, products productRepo, cache cartCache, logger *zap.Logger) *Service {
	return &Service{repo: repo, products: products, cache: cache, logger: logging.OrNop(logger).Named("cart")}
}

// View is the cart priced at current product prices.
type View struct {
	BuyerID string     `json:"buyerId"`
	Items   []ViewItem `json:"items"`
	Total   int64      `json:"total"`
}

type ViewItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceMinor int64  `json:"priceMinor"`
	LineTotal  int64  `json:"total"`
	Available  bool   `json:"available"`
}

// Get returns the buyer's cart, or an empty cart when none exists yet.
// Concurrent reads for one buyer share a single load.
func (s *Service) Get(ctx context.Context, buyerID string) (*domain.Cart, error) {
	// The shared load outlives any one caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.sfg.DoChan(buyerID, func() (any, error) {
		return s.load(loadCtx, buyerID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.Cart).Clone(), nil
	}
}

func (s *Service) load(ctx context.Context, buyerID string) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	cacheable := false
	var version int64
	if s.cache != nil {
		cart, err := s.cache.Get(ctx, buyerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cartrepo.ErrCacheMiss) {
			s.logger.Warn("cart cache get", zap.String("buyer_id", buyerID), zap.Error(err))
		}
		// The version is read before the store so a write landing in between
		// makes the fill below a no-op.
		if version, err = s.cache.Version(ctx, buyerID); err == nil {
			cacheable = true
		} else {
			s.logger.Warn("cart cache version", zap.String("buyer_id", buyerID), zap.Error(err))
		}
	}

	cart, err := s.repo.Get(ctx, buyerID)
	if errors.Is(err, domain.ErrNotFound) {
		now := time.Now().UTC()
		return &domain.Cart{BuyerID: buyerID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	if cacheable {
		written, err := s.cache.Set(ctx, cart, version)
		switch {
		case err != nil:
			s.logger.Warn("cart cache set", zap.String("buyer_id", buyerID), zap.Error(err))
		case !written:
			s.logger.Debug("cart changed during load; not cached", zap.String("buyer_id", buyerID))
		}
	}
	return cart, nil
}

func (s *Service) View(ctx context.Context, buyerID string) (*View, error) {
	cart, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	view := &View{BuyerID: buyerID, Items: make([]ViewItem, 0, len(cart.Lines))}
	for _, line := range cart.Lines {
		item := ViewItem{ProductID: line.ProductID, Quantity: line.Quantity}
		p, err := s.products.GetByID(ctx, line.ProductID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			item.Name = p.Name
			item.PriceMinor = p.PriceMinor
			item.LineTotal = p.PriceMinor * int64(line.Quantity)
			item.Available = p.AvailableQuantity >= line.Quantity
		}
		view.Total += item.LineTotal
		view.Items = append(view.Items, item)
	}
	return view, nil
}

// AddItem adds quantity of a product, incrementing an existing line. Live stock
// is not checked here; settlement reserves it.
func (s *Service) AddItem(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	cart, err := s.repo.AddLine(ctx, buyerID, productID, quantity)
	if err != nil {
		return nil, err
	}
	s.Forget(ctx, buyerID)
	return cart, nil
}

// SetQuantity overwrites a line; zero or negative removes it.
func (s *Service) SetQuantity(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error) {
	cart, err := s.repo.SetQuantity(ctx, buyerID, productID, quantity)
	if err != nil {
		return nil, err
	}
	s.Forget(ctx, buyerID)
	return cart, nil
}

func (s *Service) RemoveItem(ctx context.Context, buyerID, productID string) (*domain.Cart, error) {
	cart, err := s.repo.RemoveLine(ctx, buyerID, productID)
	if err != nil {
		return nil, err
	}
	s.Forget(ctx, buyerID)
	return cart, nil
}

// Snapshot returns a private copy of the stored cart, bypassing the cache.
func (s *Service) Snapshot(ctx context.Context, buyerID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, buyerID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Cart{BuyerID: buyerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart.Clone(), nil
}

func (s *Service) Clear(ctx context.Context, buyerID string) error {
	if err := s.repo.Delete(ctx, buyerID); err != nil {
		return err
	}
	s.Forget(ctx, buyerID)
	return nil
}

// Forget drops any cached copy of the buyer's cart.
func (s *Service) Forget(ctx context.Context, buyerID string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, buyerID); err != nil {
		s.logger.Warn("cart cache invalidate", zap.String("buyer_id", buyerID), zap.Error(err))
	}
}
