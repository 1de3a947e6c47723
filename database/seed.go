package database

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-backend/models"
)

type seedProduct struct {
	name, description, price string
	stock                    int
}

type seedCategory struct {
	name     string
	children []seedCategory
	products []seedProduct
}

var sampleCatalog = []seedCategory{
	{name: "Electronics", children: []seedCategory{
		{name: "Smartphones", products: []seedProduct{
			{"iPhone 13", "Latest iPhone model", "999.99", 50},
			{"Samsung Galaxy S21", "Flagship Android phone", "899.99", 40},
		}},
		{name: "Laptops", products: []seedProduct{
			{"MacBook Pro", "Powerful laptop for professionals", "1999.99", 25},
			{"Dell XPS 15", "High-performance Windows laptop", "1799.99", 30},
		}},
		{name: "Accessories", products: []seedProduct{
			{"AirPods Pro", "Noise-cancelling earbuds", "249.99", 100},
		}},
	}},
	{name: "Books", children: []seedCategory{
		{name: "Fiction", products: []seedProduct{
			{"The Great Gatsby", "Classic novel by F. Scott Fitzgerald", "15.99", 200},
			{"To Kill a Mockingbird", "Harper Lee's masterpiece", "14.99", 150},
		}},
		{name: "Non-Fiction", products: []seedProduct{
			{"A Brief History of Time", "Stephen Hawking's cosmology book", "18.99", 75},
		}},
	}},
	{name: "Clothing", products: []seedProduct{
		{"Denim Jeans", "Classic blue jeans", "49.99", 300},
		{"Cotton T-Shirt", "Comfortable everyday tee", "19.99", 500},
	}},
	{name: "Home & Kitchen", products: []seedProduct{
		{"Coffee Maker", "Programmable drip coffee maker", "79.99", 60},
		{"Microwave Oven", "Countertop microwave", "129.99", 40},
	}},
	{name: "Sports & Outdoors", products: []seedProduct{
		{"Yoga Mat", "Non-slip exercise mat", "29.99", 150},
		{"Dumbbells Set", "Adjustable weight set", "199.99", 30},
	}},
}

// SeedCatalog loads the sample catalog into an empty database. It is a
// no-op once any category exists.
func SeedCatalog(db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, root := range sampleCatalog {
			n, err := seedTree(tx, root, nil)
			if err != nil {
				return err
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("sample catalog seeded", zap.Int("products", created))
	return nil
}

func seedTree(tx *gorm.DB, node seedCategory, parent *models.Category) (int, error) {
	cat := models.Category{Name: node.name, Slug: models.Slugify(node.name)}
	if parent != nil {
		cat.ParentID = &parent.ID
	}
	if err := tx.Create(&cat).Error; err != nil {
		return 0, err
	}

	created := 0
	for _, p := range node.products {
		product := models.Product{
			Name:        p.name,
			Slug:        models.Slugify(p.name),
			Description: p.description,
			CategoryID:  cat.ID,
			Price:       decimal.RequireFromString(p.price),
			Stock:       p.stock,
		}
		if err := tx.Create(&product).Error; err != nil {
			return 0, err
		}
		created++
	}
	for _, child := range node.children {
		n, err := seedTree(tx, child, &cat)
		if err != nil {
			return 0, err
		}
		created += n
	}
	return created, nil
}
