package memory

import (
	"context"
	"sort"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/repository/token"
	"github.com/google/uuid"
)

type Products struct{ s *Store }

func (p *Products) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	prod, ok := p.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *prod
	return &out, nil
}

func (p *Products) ListByDesigner(_ context.Context, designerID string) ([]domain.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []domain.Product
	for _, prod := range p.s.products {
		if prod.DesignerID == designerID {
			out = append(out, *prod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (p *Products) Upsert(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.AvailableQuantity < 0 || product.PriceMinor < 0 {
		return nil, domain.Validationf("price and stock must not be negative")
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if existing, ok := p.s.products[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
	} else {
		product.CreatedAt = p.s.now()
	}
	stored := product
	p.s.products[product.ID] = &stored
	return &product, nil
}

func (p *Products) SetPrice(_ context.Context, id string, priceMinor int64) error {
	if priceMinor < 0 {
		return domain.Validationf("price must not be negative")
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	prod, ok := p.s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	prod.PriceMinor = priceMinor
	return nil
}

type Tokens struct{ s *Store }

func (t *Tokens) Create(_ context.Context, tok token.Token) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tokens[tok.Token]; ok {
		return domain.ErrAlreadyExists
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = t.s.now()
	}
	t.s.tokens[tok.Token] = tok
	return nil
}

func (t *Tokens) Get(_ context.Context, value string) (*token.Token, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tok, ok := t.s.tokens[value]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tok, nil
}

type Payments struct{ s *Store }

func (p *Payments) CreateIntent(_ context.Context, intent domain.PaymentIntent) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.intentByKey[intent.IdempotencyKey]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := p.s.intents[intent.ID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := intent
	p.s.intents[intent.ID] = &stored
	p.s.intentByKey[intent.IdempotencyKey] = intent.ID
	return nil
}

func (p *Payments) GetIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	in, ok := p.s.intents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *in
	return &out, nil
}

func (p *Payments) GetIntentByKey(ctx context.Context, key string) (*domain.PaymentIntent, error) {
	p.s.mu.Lock()
	id, ok := p.s.intentByKey[key]
	p.s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.GetIntent(ctx, id)
}
