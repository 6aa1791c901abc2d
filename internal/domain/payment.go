package domain

import "time"

type PaymentRecordStatus string

const (
	PaymentRecordCreated    PaymentRecordStatus = "created"
	PaymentRecordAuthorized PaymentRecordStatus = "authorized"
	PaymentRecordCaptured   PaymentRecordStatus = "captured"
	PaymentRecordRefunded   PaymentRecordStatus = "refunded"
	PaymentRecordFailed     PaymentRecordStatus = "failed"
)

// PaymentRecord binds one gateway payment to the order set it settled.
type PaymentRecord struct {
	ID               string              `json:"id"`
	BuyerID          string              `json:"buyerId"`
	OrderIDs         []string            `json:"orderIds"`
	PaymentIntentID  string              `json:"paymentIntentId"`
	PaymentReference string              `json:"paymentReference"`
	Amount           int64               `json:"amount"`
	Currency         string              `json:"currency"`
	Status           PaymentRecordStatus `json:"status"`
	Method           string              `json:"method"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// PaymentIntent is the locally persisted view of a remote gateway order.
type PaymentIntent struct {
	ID             string           `json:"id"`
	BuyerID        string           `json:"buyerId"`
	OrderRef       string           `json:"orderRef"`
	IdempotencyKey string           `json:"-"`
	Amount         int64            `json:"amount"`
	Currency       string           `json:"currency"`
	Shipping       *ShippingAddress `json:"shippingInfo,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}
