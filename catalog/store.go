package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront-backend/models"
)

var (
	ErrNotFound          = errors.New("catalog: not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

const (
	DefaultPageSize     = 9
	DefaultRelatedLimit = 4
	DefaultPopularLimit = 3
)

// sortColumns whitelists the sort keys accepted from clients.
var sortColumns = map[string]string{
	"price":       "products.price ASC",
	"-price":      "products.price DESC",
	"name":        "products.name ASC",
	"-name":       "products.name DESC",
	"created_at":  "products.created_at ASC",
	"-created_at": "products.created_at DESC",
}

// Store is the product and category authority, including the stock counter
// that cart mutations adjust.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store whose statements run inside tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Preload("Category").First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AdjustStock applies a relative change to a product's stock. The change is
// a single conditional UPDATE so concurrent carts never lose each other's
// adjustments and stock never goes negative.
func (s *Store) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("adjust stock: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

// Categories returns the root categories with their subtrees attached.
func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	var all []models.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&all).Error; err != nil {
		return nil, err
	}

	children := make(map[uuid.UUID][]models.Category)
	var roots []models.Category
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var attach func(c *models.Category)
	attach = func(c *models.Category) {
		c.Children = children[c.ID]
		for i := range c.Children {
			attach(&c.Children[i])
		}
	}
	for i := range roots {
		attach(&roots[i])
	}
	return roots, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	err := s.db.WithContext(ctx).
		Preload("Children", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("slug = ?", slug).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// DescendantIDs returns id followed by the ids of every category beneath it.
func (s *Store) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var rows []models.Category
	if err := s.db.WithContext(ctx).Select("id", "parent_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, r := range rows {
		if r.ParentID != nil {
			children[*r.ParentID] = append(children[*r.ParentID], r.ID)
		}
	}

	ids := []uuid.UUID{id}
	seen := map[uuid.UUID]bool{id: true}
	for i := 0; i < len(ids); i++ {
		for _, child := range children[ids[i]] {
			if !seen[child] {
				seen[child] = true
				ids = append(ids, child)
			}
		}
	}
	return ids, nil
}

type ProductQuery struct {
	CategorySlug string
	Sort         string
	Page         int
	PageSize     int
}

type ProductPage struct {
	Products   []models.Product `json:"products"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// ListProducts pages through the catalog. Filtering by category includes
// products of all its subcategories.
func (s *Store) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = DefaultPageSize
	}
	order := s.orderBy(q.Sort)

	var categoryIDs []uuid.UUID
	if q.CategorySlug != "" {
		cat, err := s.CategoryBySlug(ctx, q.CategorySlug)
		if err != nil {
			return nil, err
		}
		if categoryIDs, err = s.DescendantIDs(ctx, cat.ID); err != nil {
			return nil, err
		}
	}
	scope := func() *gorm.DB {
		db := s.db.WithContext(ctx).Model(&models.Product{})
		if categoryIDs != nil {
			db = db.Where("category_id IN ?", categoryIDs)
		}
		return db
	}

	page := &ProductPage{Page: q.Page, PageSize: q.PageSize, Products: []models.Product{}}
	if err := scope().Count(&page.Total).Error; err != nil {
		return nil, err
	}
	page.TotalPages = int((page.Total + int64(q.PageSize) - 1) / int64(q.PageSize))

	err := scope().
		Order(order).Order("products.id ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&page.Products).Error
	if err != nil {
		return nil, err
	}
	return page, nil
}

// orderBy resolves a client sort key. SQLite stores prices as TEXT, so
// price sorts compare them numerically there.
func (s *Store) orderBy(sort string) string {
	order, ok := sortColumns[sort]
	if !ok {
		order = sortColumns["-created_at"]
	}
	if s.db.Dialector.Name() == "sqlite" {
		order = strings.Replace(order, "products.price", "CAST(products.price AS REAL)", 1)
	}
	return order
}

// RelatedProducts returns other products from the same category.
func (s *Store) RelatedProducts(ctx context.Context, p *models.Product, limit int) ([]models.Product, error) {
	if limit < 1 {
		limit = DefaultRelatedLimit
	}
	var related []models.Product
	err := s.db.WithContext(ctx).
		Where("category_id = ? AND id <> ?", p.CategoryID, p.ID).
		Order("created_at DESC").Order("id ASC").
		Limit(limit).
		Find(&related).Error
	return related, err
}

type PopularProduct struct {
	models.Product
	CartCount int64 `json:"cart_count"`
}

// PopularProducts ranks products by how many distinct carts hold them.
func (s *Store) PopularProducts(ctx context.Context, limit int) ([]PopularProduct, error) {
	if limit < 1 {
		limit = DefaultPopularLimit
	}
	var popular []PopularProduct
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*, COUNT(DISTINCT cart_items.cart_id) AS cart_count").
		Joins("JOIN cart_items ON cart_items.product_id = products.id").
		Group("products.id").
		Order("cart_count DESC").Order("products.name ASC").
		Limit(limit).
		Scan(&popular).Error
	return popular, err
}
