package memory

import (
	"context"

	"designer-marketplace/internal/domain"
)

type Carts struct{ s *Store }

func (c *Carts) Get(_ context.Context, buyerID string) (*domain.Cart, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cart, ok := c.s.carts[buyerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cart.Clone(), nil
}

func (c *Carts) AddLine(_ context.Context, buyerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.products[productID]; !ok {
		return nil, domain.ErrNotFound
	}
	now := c.s.now()
	cart, ok := c.s.carts[buyerID]
	if !ok {
		cart = &domain.Cart{BuyerID: buyerID, CreatedAt: now}
		c.s.carts[buyerID] = cart
	}
	cart.UpdatedAt = now
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines[i].Quantity += quantity
			return cart.Clone(), nil
		}
	}
	cart.Lines = append(cart.Lines, domain.CartLine{ProductID: productID, Quantity: quantity, AddedAt: now})
	return cart.Clone(), nil
}

func (c *Carts) SetQuantity(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return c.RemoveLine(ctx, buyerID, productID)
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cart, idx := c.findLine(buyerID, productID)
	if idx < 0 {
		return nil, domain.ErrNotFound
	}
	cart.Lines[idx].Quantity = quantity
	cart.UpdatedAt = c.s.now()
	return cart.Clone(), nil
}

func (c *Carts) RemoveLine(_ context.Context, buyerID, productID string) (*domain.Cart, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cart, idx := c.findLine(buyerID, productID)
	if idx < 0 {
		return nil, domain.ErrNotFound
	}
	cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	cart.UpdatedAt = c.s.now()
	return cart.Clone(), nil
}

func (c *Carts) Delete(_ context.Context, buyerID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.carts, buyerID)
	return nil
}

func (c *Carts) findLine(buyerID, productID string) (*domain.Cart, int) {
	cart, ok := c.s.carts[buyerID]
	if !ok {
		return nil, -1
	}
	for i, line := range cart.Lines {
		if line.ProductID == productID {
			return cart, i
		}
	}
	return cart, -1
}
