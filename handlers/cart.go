package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-backend/cart"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/session"
	"storefront-backend/utils"
)

// CartHandler serves the cart of whoever is making the request: the signed
// in user, or the anonymous session.
type CartHandler struct {
	Engine *cart.Engine
	Bridge *session.Bridge
}

func (h *CartHandler) resolve(c *gin.Context) (*models.Cart, error) {
	ctx := c.Request.Context()
	owner, err := h.Bridge.Owner(ctx, session.ID(c), middleware.UserID(c))
	if err != nil {
		return nil, err
	}
	return h.Engine.ResolveOrCreate(ctx, owner)
}

func (h *CartHandler) respondCart(c *gin.Context, status int, cartID uuid.UUID, extra gin.H) {
	totals, err := h.Engine.ComputeTotals(c.Request.Context(), cartID)
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{"cart": totals}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userCart, err := h.resolve(c)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, userCart.ID, nil)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req struct {
		ProductID uuid.UUID `json:"product_id" binding:"required"`
		Quantity  int       `json:"quantity" binding:"required,min=1,max=1000"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	userCart, err := h.resolve(c)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.Engine.AddItem(c.Request.Context(), userCart.ID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, userCart.ID, gin.H{"item": item})
}

// RemoveItem takes ?quantity units off a line, or the whole line when the
// parameter is omitted.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	quantity := 0
	if raw, ok := c.GetQuery("quantity"); ok {
		if quantity, err = strconv.Atoi(raw); err != nil || quantity < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
			return
		}
	}

	userCart, err := h.resolve(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	var item *models.CartItem
	if quantity > 0 {
		item, err = h.Engine.RemoveOrDecrement(ctx, userCart.ID, productID, quantity)
	} else {
		err = h.Engine.RemoveLine(ctx, userCart.ID, productID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, userCart.ID, gin.H{"item": item})
}

// EmptyCart removes every line and puts the units back in stock.
func (h *CartHandler) EmptyCart(c *gin.Context) {
	userCart, err := h.resolve(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.Engine.Empty(c.Request.Context(), userCart.ID); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, userCart.ID, gin.H{"message": "Cart cleared"})
}
