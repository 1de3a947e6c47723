package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/catalog"
)

type CategoryHandler struct {
	Store *catalog.Store
}

// GetCategories returns the category tree.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	categories, err := h.Store.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

// GetCategory returns a category with its direct children and the first
// page of products from the category and its subcategories.
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	category, err := h.Store.CategoryBySlug(ctx, slug)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.Store.ListProducts(ctx, catalog.ProductQuery{
		CategorySlug: slug,
		Sort:         c.Query("sort"),
		Page:         queryInt(c, "page", 1),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"products": page,
	})
}
