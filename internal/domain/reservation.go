package domain

import "time"

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// ReservationLine is stock taken for one product, priced at the moment it was taken.
type ReservationLine struct {
	ProductID  string `json:"productId"`
	DesignerID string `json:"designerId"`
	Quantity   int    `json:"quantity"`
	PriceMinor int64  `json:"priceMinor"`
	Currency   string `json:"currency"`
}

// Reservation groups the stock taken by one checkout attempt.
type Reservation struct {
	ID         string            `json:"id"`
	BuyerID    string            `json:"buyerId"`
	PaymentRef string            `json:"paymentRef,omitempty"`
	Status     ReservationStatus `json:"status"`
	Lines      []ReservationLine `json:"lines"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Total sums quantity times captured price across the lines.
func (r *Reservation) Total() int64 {
	var total int64
	for _, l := range r.Lines {
		total += int64(l.Quantity) * l.PriceMinor
	}
	return total
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
