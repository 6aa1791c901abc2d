// Package gateway talks to the remote payment provider.
package gateway

import "context"

// Payment states reported by the provider.
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

// Intent is a remote order the buyer pays against.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is the provider's view of one payment attempt.
type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
}

// Client is the capability set checkout needs from the provider. Remote calls
// fail with domain.ErrGatewayUnavailable when the provider cannot be reached.
type Client interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (*Intent, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
	FetchStatus(ctx context.Context, paymentRef string) (*Payment, error)
	VerifyWebhook(body []byte, signature string) bool
}
