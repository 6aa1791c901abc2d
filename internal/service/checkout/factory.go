package checkout

import (
	"fmt"
	"time"

	"designer-marketplace/internal/domain"
)

const defaultCountry = "India"

// OrderInput is the checkout-wide data stamped onto every order.
type OrderInput struct {
	BuyerID          string
	ReservationID    string
	Shipping         domain.ShippingAddress
	PaymentMethod    string
	PaymentStatus    domain.PaymentStatus
	PaymentIntentID  string
	PaymentReference string
	Notes            string
	Now              time.Time
	NewID            func() string
}

// BuildOrders turns a cart snapshot into one pending order per line. Prices come
// from the reservation lines, i.e. what the product cost when stock was taken.
func BuildOrders(snapshot *domain.Cart, reserved []domain.ReservationLine, in OrderInput) ([]domain.Order, error) {
	if snapshot.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	priced := make(map[string]domain.ReservationLine, len(reserved))
	for _, line := range reserved {
		priced[line.ProductID] = line
	}

	shipping := in.Shipping
	if shipping.Country == "" {
		shipping.Country = defaultCountry
	}
	var intentID, paymentRef *string
	if in.PaymentIntentID != "" {
		v := in.PaymentIntentID
		intentID = &v
	}
	if in.PaymentReference != "" {
		v := in.PaymentReference
		paymentRef = &v
	}

	lines := snapshot.SortedLines()
	orders := make([]domain.Order, 0, len(lines))
	for _, line := range lines {
		res, ok := priced[line.ProductID]
		if !ok || res.Quantity != line.Quantity {
			return nil, fmt.Errorf("cart line %s does not match its reservation", line.ProductID)
		}
		orders = append(orders, domain.Order{
			ID:               in.NewID(),
			BuyerID:          in.BuyerID,
			ProductID:        line.ProductID,
			DesignerID:       res.DesignerID,
			Quantity:         line.Quantity,
			UnitPriceMinor:   res.PriceMinor,
			TotalPrice:       int64(line.Quantity) * res.PriceMinor,
			Currency:         res.Currency,
			ShippingAddress:  shipping,
			Status:           domain.OrderStatusPending,
			PaymentStatus:    in.PaymentStatus,
			PaymentMethod:    in.PaymentMethod,
			PaymentIntentID:  intentID,
			PaymentReference: paymentRef,
			ReservationID:    in.ReservationID,
			Notes:            in.Notes,
			CreatedAt:        in.Now,
			UpdatedAt:        in.Now,
		})
	}
	return orders, nil
}

func orderIDs(orders []domain.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func orderTotal(orders []domain.Order) int64 {
	var total int64
	for _, o := range orders {
		total += o.TotalPrice
	}
	return total
}
