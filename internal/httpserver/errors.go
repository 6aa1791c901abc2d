package httpserver

import (
	"errors"
	"net/http"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ProductID string `json:"productId,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrPaymentNotCompleted):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicatePayment),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrReservationExpired),
		errors.Is(err, domain.ErrSettlementInProgress),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError is the single place domain errors become HTTP responses.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Message: err.Error()}
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), nil).Error("unhandled error", zap.Error(err))
		resp.Message = "internal error"
	}
	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		resp.ProductID = stock.ProductID
	}
	_ = c.Error(err)
	c.JSON(status, resp)
}
