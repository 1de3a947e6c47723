package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	JWT      JWTConfig
	Cart     CartConfig
	Checkout CheckoutConfig
	Kafka    KafkaConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Seed     SeedConfig
}

type AppConfig struct {
	Name string
	Env  string // development, test, production
	Port string
}

type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxRetries       int // attempts for serialization failures and deadlocks
	LogLevel        string
}

// RedisConfig holds the session store connection. When disabled the
// in-process memory store is used, which only suits a single instance.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type SessionConfig struct {
	CookieName   string
	CookieDomain string
	CookieSecure bool
	TTL          time.Duration
}

type JWTConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// CartConfig controls anonymous cart expiry. AnonymousTTL of zero keeps
// abandoned anonymous carts forever.
type CartConfig struct {
	AnonymousTTL time.Duration
	ReapInterval time.Duration
}

type CheckoutConfig struct {
	ShippingFlat decimal.Decimal
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type HTTPConfig struct {
	CORSAllowOrigins []string
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	ShutdownTimeout  time.Duration
	ActivityInterval time.Duration // minimum gap between last_active_at writes
}

type SeedConfig struct {
	Admin         bool
	AdminEmail    string
	AdminPassword string
	Catalog       bool
}

// DefaultAdminPassword seeds the admin account in development. Production
// refuses to start with it.
const DefaultAdminPassword = "admin12345"

func LoadEnv() error {
	// Try to load .env file if it exists (for local development).
	// In production the variables are set directly on the process.
	// A missing .env file is not an error.
	_ = godotenv.Load()
	return nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Load builds the configuration.
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_DATABASE_DSN)
// 2. Legacy variables DATABASE_URL, JWT_SECRET, PORT, REDIS_ADDR, FRONTEND_URL
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.dsn", "STOREFRONT_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("jwt.secret", "STOREFRONT_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("app.port", "STOREFRONT_APP_PORT", "PORT")
	_ = v.BindEnv("redis.addr", "STOREFRONT_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("http.cors_allow_origins", "STOREFRONT_HTTP_CORS_ALLOW_ORIGINS", "FRONTEND_URL")

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			TxRetries:       v.GetInt("database.tx_retries"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Session: SessionConfig{
			CookieName:   v.GetString("session.cookie_name"),
			CookieDomain: v.GetString("session.cookie_domain"),
			CookieSecure: v.GetBool("session.cookie_secure"),
			TTL:          v.GetDuration("session.ttl"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			AccessTTL: v.GetDuration("jwt.access_ttl"),
		},
		Cart: CartConfig{
			AnonymousTTL: v.GetDuration("cart.anonymous_ttl"),
			ReapInterval: v.GetDuration("cart.reap_interval"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			CORSAllowOrigins: splitList(v.GetStringSlice("http.cors_allow_origins")),
			AuthRateLimit:    v.GetInt("http.auth_rate_limit"),
			AuthRateWindow:   v.GetDuration("http.auth_rate_window"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			ActivityInterval: v.GetDuration("http.activity_interval"),
		},
		Seed: SeedConfig{
			Admin:         v.GetBool("seed.admin"),
			AdminEmail:    v.GetString("seed.admin_email"),
			AdminPassword: v.GetString("seed.admin_password"),
			Catalog:       v.GetBool("seed.catalog"),
		},
	}

	shipping, err := decimal.NewFromString(v.GetString("checkout.shipping_flat"))
	if err != nil {
		return nil, fmt.Errorf("checkout.shipping_flat must be a decimal amount: %w", err)
	}
	cfg.Checkout.ShippingFlat = shipping

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=storefront port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.tx_retries", 3)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "storefront:session:")

	v.SetDefault("session.cookie_name", "storefront_sid")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.ttl", 14*24*time.Hour)

	v.SetDefault("jwt.issuer", "storefront-backend")
	v.SetDefault("jwt.access_ttl", 2*time.Hour)

	v.SetDefault("cart.anonymous_ttl", time.Duration(0))
	v.SetDefault("cart.reap_interval", time.Hour)

	v.SetDefault("checkout.shipping_flat", "5.00")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "storefront-events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.cors_allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("http.auth_rate_limit", 10)
	v.SetDefault("http.auth_rate_window", time.Minute)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.activity_interval", 5*time.Minute)

	v.SetDefault("seed.admin", true)
	v.SetDefault("seed.admin_email", "admin@storefront.local")
	v.SetDefault("seed.admin_password", DefaultAdminPassword)
	v.SetDefault("seed.catalog", false)
}

// Validate checks that critical settings are present and consistent.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required for postgres")
		}
	case "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}

	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	} else if c.IsProduction() && len(c.JWT.Secret) < 32 {
		problems = append(problems, "jwt.secret must be at least 32 characters in production")
	}

	if c.Checkout.ShippingFlat.IsNegative() {
		problems = append(problems, "checkout.shipping_flat must not be negative")
	}
	if c.Cart.AnonymousTTL < 0 {
		problems = append(problems, "cart.anonymous_ttl must not be negative")
	}
	if c.Cart.AnonymousTTL > 0 && c.Cart.ReapInterval <= 0 {
		problems = append(problems, "cart.reap_interval must be positive when cart.anonymous_ttl is set")
	}
	if c.IsProduction() && c.Seed.Admin && (c.Seed.AdminPassword == "" || c.Seed.AdminPassword == DefaultAdminPassword) {
		problems = append(problems, "seed.admin_password must be changed from the default in production")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is required when kafka is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// splitList accepts both TOML arrays and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
