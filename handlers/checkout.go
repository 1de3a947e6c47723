package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/checkout"
	"storefront-backend/middleware"
	"storefront-backend/session"
	"storefront-backend/utils"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
}

func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	summary, err := h.Checkout.Prepare(c.Request.Context(), session.ID(c), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		respondError(c, checkout.ErrAuthenticationRequired)
		return
	}

	var req struct {
		ShippingAddress string `json:"shipping_address" binding:"required,max=500"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	order, err := h.Checkout.Confirm(c.Request.Context(), session.ID(c), userID, checkout.ConfirmRequest{
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}
