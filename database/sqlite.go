package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite opens a SQLite database with foreign keys enforced. The pool
// is pinned to one connection so that shared in-memory databases behave
// like a single serialized server. A nil cfg opens a quiet database.
func OpenSQLite(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{TranslateError: true, Logger: gormlogger.Discard}
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return db, nil
}

// MemoryDSN returns a DSN for a named, shared in-memory database.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared&_foreign_keys=1"
}

// CreateSQLiteSchema mirrors the PostgreSQL schema produced by AutoMigrate,
// including the cart owner CHECK and the unique keys the cart engine
// relies on. Prices are TEXT so decimals round-trip exactly.
func CreateSQLiteSchema(db *gorm.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS "users" (
			"id" TEXT PRIMARY KEY,
			"email" TEXT NOT NULL UNIQUE,
			"password" TEXT NOT NULL,
			"name" TEXT,
			"role" TEXT DEFAULT 'customer',
			"is_blocked" BOOLEAN DEFAULT 0,
			"last_active_at" DATETIME,
			"created_at" DATETIME,
			"updated_at" DATETIME,
			"deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "categories" (
			"id" TEXT PRIMARY KEY,
			"name" TEXT NOT NULL,
			"slug" TEXT NOT NULL UNIQUE,
			"description" TEXT,
			"parent_id" TEXT REFERENCES "categories"("id") ON DELETE SET NULL,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "products" (
			"id" TEXT PRIMARY KEY,
			"name" TEXT NOT NULL,
			"slug" TEXT NOT NULL UNIQUE,
			"description" TEXT,
			"category_id" TEXT NOT NULL REFERENCES "categories"("id"),
			"price" TEXT NOT NULL,
			"stock" INTEGER NOT NULL DEFAULT 0 CHECK ("stock" >= 0),
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "carts" (
			"id" TEXT PRIMARY KEY,
			"user_id" TEXT UNIQUE REFERENCES "users"("id") ON DELETE CASCADE,
			"session_token" TEXT UNIQUE,
			"created_at" DATETIME,
			"updated_at" DATETIME,
			CONSTRAINT "chk_carts_owner" CHECK (("user_id" IS NULL) <> ("session_token" IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS "cart_items" (
			"id" TEXT PRIMARY KEY,
			"cart_id" TEXT NOT NULL REFERENCES "carts"("id") ON DELETE CASCADE,
			"product_id" TEXT NOT NULL REFERENCES "products"("id"),
			"quantity" INTEGER NOT NULL CHECK ("quantity" >= 1),
			"added_at" DATETIME NOT NULL,
			UNIQUE ("cart_id", "product_id")
		)`,
		`CREATE TABLE IF NOT EXISTS "orders" (
			"id" TEXT PRIMARY KEY,
			"user_id" TEXT NOT NULL REFERENCES "users"("id"),
			"order_number" TEXT NOT NULL UNIQUE,
			"status" TEXT DEFAULT 'confirmed',
			"subtotal" TEXT NOT NULL,
			"shipping" TEXT NOT NULL,
			"total" TEXT NOT NULL,
			"shipping_address" TEXT,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "order_items" (
			"id" TEXT PRIMARY KEY,
			"order_id" TEXT NOT NULL REFERENCES "orders"("id") ON DELETE CASCADE,
			"product_id" TEXT NOT NULL,
			"product_name" TEXT,
			"unit_price" TEXT NOT NULL,
			"quantity" INTEGER NOT NULL,
			"line_total" TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS "idx_products_created_at" ON "products"("created_at")`,
		`CREATE INDEX IF NOT EXISTS "idx_carts_updated_at" ON "carts"("updated_at")`,
	}

	for _, ddl := range tables {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	}
	return nil
}
