package memory

import (
	"context"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/repository/order"
)

type Orders struct{ s *Store }

func (o *Orders) Settle(_ context.Context, in order.SettleInput) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	hold, ok := o.s.holds[in.ReservationID]
	if !ok || hold.Status != domain.ReservationHeld || hold.IsExpired(o.s.now()) {
		return domain.ErrReservationExpired
	}
	if p := in.Payment; p != nil {
		if _, dup := o.s.payments[p.PaymentReference]; dup {
			return domain.ErrDuplicatePayment
		}
		for _, existing := range o.s.payments {
			if existing.PaymentIntentID == p.PaymentIntentID {
				return domain.ErrDuplicatePayment
			}
		}
	}

	hold.Status = domain.ReservationCommitted
	if p := in.Payment; p != nil {
		stored := *p
		stored.OrderIDs = append([]string(nil), p.OrderIDs...)
		o.s.payments[p.PaymentReference] = &stored
	}
	for _, ord := range in.Orders {
		stored := ord
		o.s.orders[ord.ID] = &stored
		o.s.orderSeq = append(o.s.orderSeq, ord.ID)
	}
	delete(o.s.carts, in.BuyerID)
	return nil
}

func (o *Orders) FindPaymentByReference(_ context.Context, paymentRef string) (*domain.PaymentRecord, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	p, ok := o.s.payments[paymentRef]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	out.OrderIDs = append([]string(nil), p.OrderIDs...)
	return &out, nil
}

func (o *Orders) MarkPaymentFailed(_ context.Context, paymentRef string) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	p, ok := o.s.payments[paymentRef]
	if !ok {
		return false, nil
	}
	now := o.s.now()
	p.Status = domain.PaymentRecordFailed
	p.UpdatedAt = now
	for _, id := range p.OrderIDs {
		if ord, ok := o.s.orders[id]; ok {
			ord.PaymentStatus = domain.PaymentStatusFailed
			ord.UpdatedAt = now
		}
	}
	return true, nil
}

func (o *Orders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *ord
	return &out, nil
}

func (o *Orders) ListByBuyer(_ context.Context, buyerID string, status domain.OrderStatus) ([]domain.Order, error) {
	return o.list(func(ord *domain.Order) bool { return ord.BuyerID == buyerID }, status), nil
}

func (o *Orders) ListByDesigner(_ context.Context, designerID string, status domain.OrderStatus) ([]domain.Order, error) {
	return o.list(func(ord *domain.Order) bool { return ord.DesignerID == designerID }, status), nil
}

// list walks orders newest first.
func (o *Orders) list(owned func(*domain.Order) bool, status domain.OrderStatus) []domain.Order {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var out []domain.Order
	for i := len(o.s.orderSeq) - 1; i >= 0; i-- {
		ord := o.s.orders[o.s.orderSeq[i]]
		if owned(ord) && (status == "" || ord.Status == status) {
			out = append(out, *ord)
		}
	}
	return out
}

func (o *Orders) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if ord.Status != from {
		return domain.ErrInvalidTransition
	}
	ord.Status = to
	ord.UpdatedAt = o.s.now()
	if to == domain.OrderStatusCancelled {
		if prod, ok := o.s.products[ord.ProductID]; ok {
			prod.AvailableQuantity += ord.Quantity
		}
	}
	return nil
}

func (o *Orders) SetTracking(_ context.Context, id, trackingNumber string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	ord.TrackingNumber = trackingNumber
	ord.UpdatedAt = o.s.now()
	return nil
}
