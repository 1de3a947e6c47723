package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront-backend/cart"
	"storefront-backend/catalog"
	"storefront-backend/checkout"
	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/session"
	"storefront-backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryDSN("routes_"+uuid.NewString()[:8]), &gorm.Config{TranslateError: true, Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		Session: config.SessionConfig{CookieName: "storefront_sid", TTL: time.Hour},
		HTTP:    config.HTTPConfig{CORSAllowOrigins: []string{"http://localhost:3000"}},
	}
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := catalog.NewStore(db)
	engine := cart.NewEngine(db, store, cart.WithShipping(decimal.NewFromInt(5)), cart.WithMetrics(m))
	bridge := session.NewBridge(session.NewMemoryStore(0), engine, nil, log)

	r := gin.New()
	SetupRoutes(r, Deps{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Catalog:     store,
		Engine:      engine,
		Bridge:      bridge,
		Checkout:    checkout.NewService(db, engine, bridge, nil, m, 1, log),
		Tokens:      utils.NewTokenIssuer(config.JWTConfig{Secret: "test-secret-for-routes"}),
		Metrics:     m,
		Gatherer:    reg,
		AuthLimiter: limiter,
	})
	return r
}

func serve(r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(setupRouter(t, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRoutesRegistered(t *testing.T) {
	r := setupRouter(t, nil)

	want := map[string]bool{
		"POST /api/auth/register":               false,
		"POST /api/auth/login":                  false,
		"GET /api/auth/profile":                 false,
		"GET /api/categories":                   false,
		"GET /api/categories/:slug":             false,
		"GET /api/products":                     false,
		"GET /api/products/popular":             false,
		"GET /api/products/:id":                 false,
		"GET /api/cart":                         false,
		"POST /api/cart/items":                  false,
		"DELETE /api/cart/items/:product_id":    false,
		"DELETE /api/cart":                      false,
		"GET /api/checkout":                     false,
		"POST /api/checkout":                    false,
		"GET /api/orders":                       false,
		"GET /api/orders/:id":                   false,
		"POST /api/admin/products/:id/stock":    false,
		"GET /health":                           false,
		"GET /metrics":                          false,
	}
	for _, route := range r.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		assert.True(t, found, "route %s not registered", route)
	}
}

func TestAPISetsSessionCookieAndRequestID(t *testing.T) {
	w := serve(setupRouter(t, nil), http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "storefront_sid" {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie not set")
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupRouter(t, nil)
	for _, path := range []string{"/api/auth/profile", "/api/orders"} {
		w := serve(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := setupRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAuthRoutesRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	r := setupRouter(t, limiter)

	body := `{"email":"nobody@example.com","password":"password123"}`
	first := serve(r, http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := serve(r, http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Catalog routes are not limited.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/products", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, nil)
	serve(r, http.MethodGet, "/api/products", "")

	w := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `storefront_http_requests_total{method="GET",route="/api/products",status="200"} 1`)
}
