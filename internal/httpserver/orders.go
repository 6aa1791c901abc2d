package httpserver

import (
	"net/http"

	"designer-marketplace/internal/domain"
	ordersvc "designer-marketplace/internal/service/order"
	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type trackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

func orderFilter(c *gin.Context) ordersvc.Filter {
	return ordersvc.Filter{
		Status:        domain.OrderStatus(c.Query("status")),
		PaymentStatus: domain.PaymentStatus(c.Query("paymentStatus")),
	}
}

func (h *handlers) buyerOrders(c *gin.Context) {
	orders, err := h.orders.ListForBuyer(c.Request.Context(), identityFrom(c), orderFilter(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": nonNil(orders)})
}

func (h *handlers) designerOrders(c *gin.Context) {
	orders, err := h.orders.ListForDesigner(c.Request.Context(), identityFrom(c), orderFilter(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": nonNil(orders)})
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, domain.Validationf("status is required"))
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), identityFrom(c), c.Param("orderId"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}

func (h *handlers) updateTracking(c *gin.Context) {
	var req trackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validationf("invalid request body"))
		return
	}
	o, err := h.orders.SetTracking(c.Request.Context(), identityFrom(c), c.Param("orderId"), req.TrackingNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}

func nonNil(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return orders
}
