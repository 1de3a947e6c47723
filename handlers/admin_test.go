package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAdjustStock(t *testing.T) {
	env := newTestEnv(t)
	cat := env.category(t, "Tools", nil)
	p := env.product(t, cat, "Hammer", "12.00", 2)
	env.admin(t, "admin@example.com", "password123")

	c := env.client()
	c.login(t, "admin@example.com", "password123")

	w := c.do(t, http.MethodPost, "/api/admin/products/"+p.ID.String()+"/stock", gin.H{"delta": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 7, env.stock(t, p.ID))

	w = c.do(t, http.MethodPost, "/api/admin/products/"+p.ID.String()+"/stock", gin.H{"delta": -10})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 7, env.stock(t, p.ID))

	w = c.do(t, http.MethodPost, "/api/admin/products/"+uuid.NewString()+"/stock", gin.H{"delta": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(t, http.MethodPost, "/api/admin/products/"+p.ID.String()+"/stock", gin.H{"delta": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminAdjustStockRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	cat := env.category(t, "Tools", nil)
	p := env.product(t, cat, "Hammer", "12.00", 2)
	env.user(t, "shopper@example.com", "password123")

	w := env.client().do(t, http.MethodPost, "/api/admin/products/"+p.ID.String()+"/stock", gin.H{"delta": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c := env.client()
	c.login(t, "shopper@example.com", "password123")
	w = c.do(t, http.MethodPost, "/api/admin/products/"+p.ID.String()+"/stock", gin.H{"delta": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 2, env.stock(t, p.ID))
}
