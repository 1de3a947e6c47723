package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-backend/catalog"
	"storefront-backend/utils"
)

// AdminHandler serves the staff-only endpoints.
type AdminHandler struct {
	Store *catalog.Store
}

// AdjustStock restocks (positive delta) or writes off (negative delta) a
// product. Carts holding reservations are unaffected.
func (h *AdminHandler) AdjustStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req struct {
		Delta int `json:"delta" binding:"required,min=-100000,max=100000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.AdjustStock(ctx, id, req.Delta); err != nil {
		respondError(c, err)
		return
	}
	product, err := h.Store.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}
