package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-backend/catalog"
)

type ProductHandler struct {
	Store *catalog.Store
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	page, err := h.Store.ListProducts(c.Request.Context(), catalog.ProductQuery{
		CategorySlug: c.Query("category"),
		Sort:         c.Query("sort"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", catalog.DefaultPageSize),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetPopularProducts returns the products held by the most carts.
func (h *ProductHandler) GetPopularProducts(c *gin.Context) {
	popular, err := h.Store.PopularProducts(c.Request.Context(), queryInt(c, "limit", catalog.DefaultPopularLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	if popular == nil {
		popular = []catalog.PopularProduct{}
	}

	c.JSON(http.StatusOK, popular)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	ctx := c.Request.Context()
	product, err := h.Store.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	related, err := h.Store.RelatedProducts(ctx, product, catalog.DefaultRelatedLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":  product,
		"in_stock": product.InStock(),
		"related":  related,
	})
}
