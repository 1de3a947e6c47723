package database

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storefront-backend/config"
	"storefront-backend/logger"
	"storefront-backend/models"
)

// Connect opens the configured database. TranslateError is enabled so
// unique violations surface as gorm.ErrDuplicatedKey on every driver.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.NewGormLogger(log, cfg.LogLevel),
		TranslateError: true,
	}

	if cfg.Driver == "sqlite" {
		return OpenSQLite(cfg.DSN, gcfg)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		return CreateSQLiteSchema(db)
	}

	// gen_random_uuid() lives in pgcrypto on older PostgreSQL releases.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	)
}

func CreateDefaultAdmin(db *gorm.DB, cfg config.SeedConfig, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", cfg.AdminEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:    cfg.AdminEmail,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
		Name:     "Admin User",
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Info("default admin created", zap.String("email", cfg.AdminEmail))
	return nil
}
