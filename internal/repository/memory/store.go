// Package memory keeps every repository in process memory behind one mutex.
// Each operation runs under the lock, so the conditional stock decrement and the
// settle commit are atomic the same way their Postgres counterparts are.
package memory

import (
	"sync"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/repository/cart"
	"designer-marketplace/internal/repository/inventory"
	"designer-marketplace/internal/repository/order"
	"designer-marketplace/internal/repository/payment"
	"designer-marketplace/internal/repository/product"
	"designer-marketplace/internal/repository/token"
)

var (
	_ product.Repository = (*Products)(nil)
	_ inventory.Ledger   = (*Ledger)(nil)
	_ cart.Repository    = (*Carts)(nil)
	_ order.Repository   = (*Orders)(nil)
	_ payment.Repository = (*Payments)(nil)
	_ token.Repository   = (*Tokens)(nil)
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	products    map[string]*domain.Product
	carts       map[string]*domain.Cart
	holds       map[string]*domain.Reservation
	orders      map[string]*domain.Order
	orderSeq    []string
	payments    map[string]*domain.PaymentRecord
	intents     map[string]*domain.PaymentIntent
	intentByKey map[string]string
	tokens      map[string]token.Token
}

func New() *Store {
	return &Store{
		now:         time.Now,
		products:    make(map[string]*domain.Product),
		carts:       make(map[string]*domain.Cart),
		holds:       make(map[string]*domain.Reservation),
		orders:      make(map[string]*domain.Order),
		payments:    make(map[string]*domain.PaymentRecord),
		intents:     make(map[string]*domain.PaymentIntent),
		intentByKey: make(map[string]string),
		tokens:      make(map[string]token.Token),
	}
}

// WithClock replaces the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Products() *Products { return &Products{s} }
func (s *Store) Ledger() *Ledger { return &Ledger{s} }
func (s *Store) Carts() *Carts { return &Carts{s} }
func (s *Store) Orders() *Orders { return &Orders{s} }
func (s *Store) Payments() *Payments { return &Payments{s} }
func (s *Store) Tokens() *Tokens { return &Tokens{s} }
