package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransitionTo reports whether the fulfillment workflow may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

const (
	PaymentMethodOnline         = "online"
	PaymentMethodCashOnDelivery = "cod"
)

type ShippingAddress struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Country  string `json:"country,omitempty"`
}

// Missing returns the name of the first required field left blank.
func (a ShippingAddress) Missing() string {
	switch {
	case a.FullName == "":
		return "fullName"
	case a.Phone == "":
		return "phone"
	case a.Address == "":
		return "address"
	case a.City == "":
		return "city"
	case a.State == "":
		return "state"
	case a.Pincode == "":
		return "pincode"
	}
	return ""
}

type Order struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyerId"`
	ProductID        string          `json:"productId"`
	DesignerID       string          `json:"designerId"`
	Quantity         int             `json:"quantity"`
	UnitPriceMinor   int64           `json:"unitPriceMinor"`
	TotalPrice       int64           `json:"totalPrice"`
	Currency         string          `json:"currency"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	PaymentMethod    string          `json:"paymentMethod"`
	PaymentIntentID  *string         `json:"paymentIntentId,omitempty"`
	PaymentReference *string         `json:"paymentReference,omitempty"`
	ReservationID    string          `json:"-"`
	TrackingNumber   string          `json:"trackingNumber,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
