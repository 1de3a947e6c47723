package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/checkout"
	"storefront-backend/models"
)

func TestCheckoutRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	w := c.do(t, http.MethodGet, "/api/checkout", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, LoginPath, errorBody(t, w)["redirect"])

	w = c.do(t, http.MethodPost, "/api/checkout", gin.H{"shipping_address": "1 Main St"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, LoginPath, errorBody(t, w)["redirect"])
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	cat := env.category(t, "Books", nil)
	a := env.product(t, cat, "Alpha", "12.50", 10)
	b := env.product(t, cat, "Beta", "3.00", 10)
	env.user(t, "u1@example.com", "password123")

	c := env.client()
	c.do(t, http.MethodPost, "/api/cart/items", gin.H{"product_id": a.ID, "quantity": 2})
	c.login(t, "u1@example.com", "password123")
	c.do(t, http.MethodPost, "/api/cart/items", gin.H{"product_id": b.ID, "quantity": 1})

	w := c.do(t, http.MethodGet, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary checkout.Summary
	decode(t, w, &summary)
	assert.Equal(t, 3, summary.Totals.ItemCount)
	assert.True(t, summary.Totals.Subtotal.Equal(decimal.RequireFromString("28.00")))
	assert.True(t, summary.Totals.Total.Equal(decimal.RequireFromString("33.00")))

	w = c.do(t, http.MethodPost, "/api/checkout", gin.H{"shipping_address": "1 Main St"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("33.00")))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, 8, env.stock(t, a.ID))

	w = c.do(t, http.MethodGet, "/api/cart", nil)
	var after cartResponse
	decode(t, w, &after)
	assert.Empty(t, after.Cart.Lines)

	w = c.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []models.Order
	decode(t, w, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	w = c.do(t, http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutMergesPendingAnonymousCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, env.category(t, "Books", nil), "Alpha", "1.00", 10)
	u := env.user(t, "u1@example.com", "password123")

	// A token issued elsewhere, while this browser still has an anonymous cart.
	c := env.client()
	c.do(t, http.MethodPost, "/api/cart/items", gin.H{"product_id": p.ID, "quantity": 2})
	token, err := env.tokens.Issue(u.ID, u.Email, u.Role)
	require.NoError(t, err)
	c.token = token

	w := c.do(t, http.MethodGet, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary checkout.Summary
	decode(t, w, &summary)
	assert.True(t, summary.Merged)
	assert.Equal(t, 2, summary.Totals.ItemCount)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "u1@example.com", "password123")
	c := env.client()
	c.login(t, "u1@example.com", "password123")

	w := c.do(t, http.MethodPost, "/api/checkout", gin.H{"shipping_address": "1 Main St"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Your cart is empty", errorBody(t, w)["notice"])
}

func TestCheckoutRequiresAddress(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "u1@example.com", "password123")
	c := env.client()
	c.login(t, "u1@example.com", "password123")

	w := c.do(t, http.MethodPost, "/api/checkout", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "shipping_address is required", errorBody(t, w)["error"])
}

func TestOrdersRequireLoginAndAreScoped(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, env.category(t, "Books", nil), "Alpha", "1.00", 10)
	env.user(t, "u1@example.com", "password123")
	env.user(t, "u2@example.com", "password123")

	w := env.client().do(t, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	owner := env.client()
	owner.login(t, "u1@example.com", "password123")
	owner.do(t, http.MethodPost, "/api/cart/items", gin.H{"product_id": p.ID, "quantity": 1})
	w = owner.do(t, http.MethodPost, "/api/checkout", gin.H{"shipping_address": "1 Main St"})
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	decode(t, w, &order)

	other := env.client()
	other.login(t, "u2@example.com", "password123")
	w = other.do(t, http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = other.do(t, http.MethodGet, "/api/orders", nil)
	var orders []models.Order
	decode(t, w, &orders)
	assert.Empty(t, orders)

	w = owner.do(t, http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = owner.do(t, http.MethodGet, "/api/orders/bad-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
