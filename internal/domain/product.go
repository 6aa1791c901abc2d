package domain

import "time"

type Product struct {
	ID                string    `json:"id"`
	DesignerID        string    `json:"designerId"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	PriceMinor        int64     `json:"priceMinor"`
	Currency          string    `json:"currency"`
	AvailableQuantity int       `json:"availableQuantity"`
	ImageURL          string    `json:"image,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}
