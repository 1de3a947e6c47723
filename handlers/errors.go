package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/cart"
	"storefront-backend/catalog"
	"storefront-backend/checkout"
	"storefront-backend/logger"
)

// LoginPath is where clients are sent when an operation needs a signed in user.
const LoginPath = "/api/auth/login"

// respondError maps domain errors to responses. Out of stock and missing
// lines are notices the client shows without blocking the page; anything
// unexpected is logged and reported generically.
func respondError(c *gin.Context, err error) {
	var stockErr *cart.StockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Insufficient stock",
			"notice":    fmt.Sprintf("Only %d left in stock", stockErr.Available),
			"available": stockErr.Available,
		})
	case errors.Is(err, cart.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock", "notice": "This product is out of stock"})
	case errors.Is(err, catalog.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
	case errors.Is(err, cart.ErrItemNotInCart):
		c.JSON(http.StatusConflict, gin.H{"error": "Item not in cart", "notice": "That item is no longer in your cart"})
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, checkout.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
	case errors.Is(err, checkout.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "shipping_address is required"})
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusConflict, gin.H{"error": "Cart is empty", "notice": "Your cart is empty"})
	case errors.Is(err, checkout.ErrAuthenticationRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "redirect": LoginPath})
	default:
		logger.FromGin(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}
