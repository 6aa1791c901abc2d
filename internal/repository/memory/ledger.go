package memory

import (
	"context"
	"sort"
	"time"

	"designer-marketplace/internal/domain"
)

type Ledger struct{ s *Store }

func (l *Ledger) OpenHold(_ context.Context, hold domain.Reservation) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.holds[hold.ID]; ok {
		return domain.ErrAlreadyExists
	}
	hold.Status = domain.ReservationHeld
	hold.Lines = nil
	l.s.holds[hold.ID] = &hold
	return nil
}

func (l *Ledger) Reserve(_ context.Context, holdID, productID string, quantity int) (*domain.ReservationLine, error) {
	if quantity < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	hold, ok := l.s.holds[holdID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if hold.Status != domain.ReservationHeld {
		return nil, domain.ErrReservationExpired
	}
	prod, ok := l.s.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if prod.AvailableQuantity < quantity {
		return nil, &domain.InsufficientStockError{ProductID: productID}
	}
	prod.AvailableQuantity -= quantity

	line := domain.ReservationLine{
		ProductID:  productID,
		DesignerID: prod.DesignerID,
		Quantity:   quantity,
		PriceMinor: prod.PriceMinor,
		Currency:   prod.Currency,
	}
	for i := range hold.Lines {
		if hold.Lines[i].ProductID == productID {
			hold.Lines[i].Quantity += quantity
			return &line, nil
		}
	}
	hold.Lines = append(hold.Lines, line)
	return &line, nil
}

func (l *Ledger) Release(_ context.Context, holdID string) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	hold, ok := l.s.holds[holdID]
	if !ok || hold.Status != domain.ReservationHeld {
		return false, nil
	}
	hold.Status = domain.ReservationReleased
	for _, line := range hold.Lines {
		if prod, ok := l.s.products[line.ProductID]; ok {
			prod.AvailableQuantity += line.Quantity
		}
	}
	return true, nil
}

func (l *Ledger) HeldForPayment(_ context.Context, paymentRef string) ([]string, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var ids []string
	for id, hold := range l.s.holds {
		if hold.PaymentRef == paymentRef && hold.Status == domain.ReservationHeld {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Ledger) Expired(_ context.Context, now time.Time, limit int) ([]string, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var expired []*domain.Reservation
	for _, hold := range l.s.holds {
		if hold.Status == domain.ReservationHeld && hold.IsExpired(now) {
			expired = append(expired, hold)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]string, len(expired))
	for i, hold := range expired {
		ids[i] = hold.ID
	}
	return ids, nil
}

func (l *Ledger) Available(_ context.Context, productID string) (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	prod, ok := l.s.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return prod.AvailableQuantity, nil
}

// Hold returns a copy of a hold, for tests and diagnostics.
func (l *Ledger) Hold(holdID string) (domain.Reservation, bool) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	hold, ok := l.s.holds[holdID]
	if !ok {
		return domain.Reservation{}, false
	}
	out := *hold
	out.Lines = append([]domain.ReservationLine(nil), hold.Lines...)
	return out, true
}
