package httpserver

import (
	"io"
	"net/http"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/service/checkout"
	paymentsvc "designer-marketplace/internal/service/payment"
	"github.com/gin-gonic/gin"
)

const webhookSignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody bounds what we read before checking the signature.
const maxWebhookBody = 1 << 20

type checkoutRequest struct {
	ShippingInfo  domain.ShippingAddress `json:"shippingInfo"`
	PaymentMethod string                 `json:"paymentMethod"`
	Notes         string                 `json:"notes"`
}

type verifyPaymentRequest struct {
	PaymentRef     string                 `json:"paymentRef"`
	OrderIntentRef string                 `json:"orderIntentRef"`
	Signature      string                 `json:"signature"`
	ShippingInfo   domain.ShippingAddress `json:"shippingInfo"`
	Notes          string                 `json:"notes"`
}

type settledResponse struct {
	Success          bool     `json:"success"`
	OrderIDs         []string `json:"orderIds"`
	PaymentReference string   `json:"paymentReference,omitempty"`
	Replayed         bool     `json:"replayed,omitempty"`
}

type paymentStatusResponse struct {
	PaymentReference string   `json:"paymentReference"`
	Status           string   `json:"status"`
	Amount           int64    `json:"amount"`
	Currency         string   `json:"currency"`
	Method           string   `json:"method"`
	OrderIDs         []string `json:"orderIds"`
}

// processCheckout settles the cart as cash on delivery.
func (h *handlers) processCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validationf("invalid request body"))
		return
	}
	if req.PaymentMethod != "" && req.PaymentMethod != domain.PaymentMethodCashOnDelivery {
		writeError(c, domain.Validationf("online payments settle through /payment/verify-payment"))
		return
	}
	res, err := h.checkout.SettleCashOnDelivery(c.Request.Context(), identityFrom(c), req.ShippingInfo, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, settled(res))
}

func (h *handlers) createPaymentOrder(c *gin.Context) {
	var req paymentsvc.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validationf("invalid amount"))
		return
	}
	res, err := h.payments.CreateOrder(c.Request.Context(), identityFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validationf("invalid request body"))
		return
	}
	res, err := h.checkout.SettleOnline(c.Request.Context(), identityFrom(c), checkout.OnlineInput{
		PaymentRef:     req.PaymentRef,
		OrderIntentRef: req.OrderIntentRef,
		Signature:      req.Signature,
		Shipping:       req.ShippingInfo,
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settled(res))
}

// webhook acknowledges every delivery whose signature verifies.
func (h *handlers) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, domain.Validationf("unreadable body"))
		return
	}
	if err := h.webhooks.Handle(c.Request.Context(), body, c.GetHeader(webhookSignatureHeader)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *handlers) paymentStatus(c *gin.Context) {
	record, err := h.payments.Status(c.Request.Context(), identityFrom(c), c.Param("paymentRef"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentStatusResponse{
		PaymentReference: record.PaymentReference,
		Status:           string(record.Status),
		Amount:           record.Amount,
		Currency:         record.Currency,
		Method:           record.Method,
		OrderIDs:         record.OrderIDs,
	})
}

func settled(res *checkout.Result) settledResponse {
	return settledResponse{
		Success:          true,
		OrderIDs:         res.OrderIDs,
		PaymentReference: res.PaymentReference,
		Replayed:         res.Replayed,
	}
}
