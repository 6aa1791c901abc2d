package httpserver

import (
	"net/http"

	"designer-marketplace/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type priceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

func (h *handlers) designerProducts(c *gin.Context) {
	products, err := h.products.ListForDesigner(c.Request.Context(), identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func (h *handlers) updateProductPrice(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Price == nil {
		writeError(c, domain.Validationf("price is required"))
		return
	}
	p, err := h.products.SetPrice(c.Request.Context(), identityFrom(c), c.Param("productId"), *req.Price)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}
