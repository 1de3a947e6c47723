package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/catalog"
	"storefront-backend/models"
)

func TestGetCategoriesTree(t *testing.T) {
	env := newTestEnv(t)
	electronics := env.category(t, "Electronics", nil)
	env.category(t, "Laptops", &electronics)
	env.category(t, "Smartphones", &electronics)
	env.category(t, "Books", nil)

	w := env.client().do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var roots []models.Category
	decode(t, w, &roots)
	require.Len(t, roots, 2)
	assert.Equal(t, "Books", roots[0].Name)
	assert.Equal(t, "Electronics", roots[1].Name)
	require.Len(t, roots[1].Children, 2)
	assert.Equal(t, "Laptops", roots[1].Children[0].Name)
}

func TestGetCategoryBySlug(t *testing.T) {
	env := newTestEnv(t)
	electronics := env.category(t, "Electronics", nil)
	laptops := env.category(t, "Laptops", &electronics)
	env.product(t, laptops, "Notebook Pro", "999.00", 2)

	w := env.client().do(t, http.MethodGet, "/api/categories/electronics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Category models.Category     `json:"category"`
		Products catalog.ProductPage `json:"products"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "Electronics", resp.Category.Name)
	require.Len(t, resp.Category.Children, 1)
	assert.Equal(t, int64(1), resp.Products.Total)
	assert.Equal(t, "Notebook Pro", resp.Products.Products[0].Name)

	w = env.client().do(t, http.MethodGet, "/api/categories/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
