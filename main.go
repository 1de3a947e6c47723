package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"storefront-backend/cart"
	"storefront-backend/catalog"
	"storefront-backend/checkout"
	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/events"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/routes"
	"storefront-backend/session"
	"storefront-backend/utils"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		log.Fatal("Error loading .env file:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}

	zlog := logger.New(cfg.Log).With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
	defer func() { _ = zlog.Sync() }()

	db, err := database.Connect(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.Migrate(db); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	if cfg.Seed.Admin {
		if err := database.CreateDefaultAdmin(db, cfg.Seed, zlog); err != nil {
			zlog.Warn("could not create default admin", zap.Error(err))
		}
	}
	if cfg.Seed.Catalog {
		if err := database.SeedCatalog(db, zlog); err != nil {
			zlog.Warn("could not seed catalog", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store session.Store
	if cfg.Redis.Enabled {
		client, err := session.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		store = session.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Session.TTL)
	} else {
		zlog.Warn("redis disabled, keeping sessions in memory; do not run more than one instance")
		store = session.NewMemoryStore(cfg.Session.TTL)
	}

	var pub events.Publisher
	if cfg.Kafka.Enabled {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		pub = events.NewLogPublisher(zlog)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			zlog.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	catalogStore := catalog.NewStore(db)
	engine := cart.NewEngine(db, catalogStore,
		cart.WithShipping(cfg.Checkout.ShippingFlat),
		cart.WithRetries(cfg.Database.TxRetries),
		cart.WithMetrics(m),
		cart.WithLogger(zlog),
	)
	bridge := session.NewBridge(store, engine, pub, zlog)
	checkoutService := checkout.NewService(db, engine, bridge, pub, m, cfg.Database.TxRetries, zlog)

	reaper := cart.NewReaper(engine, cfg.Cart.AnonymousTTL, cfg.Cart.ReapInterval)
	go reaper.Run(ctx)

	authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimit, cfg.HTTP.AuthRateWindow)
	defer authLimiter.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	routes.SetupRoutes(r, routes.Deps{
		Config:      cfg,
		Log:         zlog,
		DB:          db,
		Catalog:     catalogStore,
		Engine:      engine,
		Bridge:      bridge,
		Checkout:    checkoutService,
		Tokens:      utils.NewTokenIssuer(cfg.JWT),
		Metrics:     m,
		Gatherer:    reg,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			zlog.Warn("error closing database connection", zap.Error(err))
		} else {
			zlog.Info("database connection closed")
		}
	}

	zlog.Info("server exited gracefully")
}
