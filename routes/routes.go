package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-backend/cart"
	"storefront-backend/catalog"
	"storefront-backend/checkout"
	"storefront-backend/config"
	"storefront-backend/handlers"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/session"
	"storefront-backend/utils"
)

// Deps is everything the HTTP surface needs. AuthLimiter and Gatherer are
// optional.
type Deps struct {
	Config      *config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	Catalog     *catalog.Store
	Engine      *cart.Engine
	Bridge      *session.Bridge
	Checkout    *checkout.Service
	Tokens      *utils.TokenIssuer
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	AuthLimiter *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.Use(logger.RequestID(), logger.GinMiddleware(d.Log), logger.Recovery(d.Log), d.Metrics.Middleware())
	origins := d.Config.HTTP.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
		d.Log.Warn("no CORS origins configured, defaulting to http://localhost:3000")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: true,
	}))

	authHandler := &handlers.AuthHandler{DB: d.DB, Tokens: d.Tokens, Bridge: d.Bridge}
	categoryHandler := &handlers.CategoryHandler{Store: d.Catalog}
	productHandler := &handlers.ProductHandler{Store: d.Catalog}
	cartHandler := &handlers.CartHandler{Engine: d.Engine, Bridge: d.Bridge}
	checkoutHandler := &handlers.CheckoutHandler{Checkout: d.Checkout}
	orderHandler := &handlers.OrderHandler{Checkout: d.Checkout}
	adminHandler := &handlers.AdminHandler{Store: d.Catalog}

	// Every api request carries a session cookie; the anonymous cart is
	// keyed off it.
	api := r.Group("/api")
	api.Use(
		session.Middleware(d.Config.Session),
		middleware.OptionalAuth(d.Tokens),
		middleware.UserActivity(d.DB, d.Config.HTTP.ActivityInterval),
	)
	{
		auth := api.Group("/auth")
		if d.AuthLimiter != nil {
			auth.Use(d.AuthLimiter.Middleware())
		}
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)

		api.GET("/categories", categoryHandler.GetCategories)
		api.GET("/categories/:slug", categoryHandler.GetCategory)

		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/popular", productHandler.GetPopularProducts)
		api.GET("/products/:id", productHandler.GetProduct)

		api.GET("/cart", cartHandler.GetCart)
		api.POST("/cart/items", cartHandler.AddItem)
		api.DELETE("/cart/items/:product_id", cartHandler.RemoveItem)
		api.DELETE("/cart", cartHandler.EmptyCart)

		// Checkout answers anonymous callers itself with a login redirect.
		api.GET("/checkout", checkoutHandler.GetCheckout)
		api.POST("/checkout", checkoutHandler.PlaceOrder)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(d.Tokens))
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.GET("/orders", orderHandler.GetOrders)
		protected.GET("/orders/:id", orderHandler.GetOrder)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Tokens), middleware.AdminMiddleware())
	{
		admin.POST("/products/:id/stock", adminHandler.AdjustStock)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}
}
