package httpserver

import (
	"net/http"

	"designer-marketplace/internal/domain"
	"github.com/gin-gonic/gin"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

// requireBuyer returns the caller when it is a buyer, writing the error response otherwise.
func requireBuyer(c *gin.Context) (domain.Identity, bool) {
	who := identityFrom(c)
	if who.Role != domain.RoleBuyer {
		writeError(c, domain.ErrAccessDenied)
		return who, false
	}
	return who, true
}

func (h *handlers) getCart(c *gin.Context) {
	who, ok := requireBuyer(c)
	if !ok {
		return
	}
	h.respondCart(c, http.StatusOK, who.SubjectID)
}

func (h *handlers) addToCart(c *gin.Context) {
	who, ok := requireBuyer(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		writeError(c, domain.Validationf("productId is required"))
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if _, err := h.carts.AddItem(c.Request.Context(), who.SubjectID, req.ProductID, qty); err != nil {
		writeError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, who.SubjectID)
}

func (h *handlers) updateCart(c *gin.Context) {
	who, ok := requireBuyer(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" || req.Quantity == nil {
		writeError(c, domain.Validationf("productId and quantity are required"))
		return
	}
	if _, err := h.carts.SetQuantity(c.Request.Context(), who.SubjectID, req.ProductID, *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, who.SubjectID)
}

func (h *handlers) removeFromCart(c *gin.Context) {
	who, ok := requireBuyer(c)
	if !ok {
		return
	}
	if _, err := h.carts.RemoveItem(c.Request.Context(), who.SubjectID, c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, who.SubjectID)
}

func (h *handlers) respondCart(c *gin.Context, status int, buyerID string) {
	view, err := h.carts.View(c.Request.Context(), buyerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"success": true, "cart": view})
}
