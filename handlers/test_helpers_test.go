package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront-backend/cart"
	"storefront-backend/catalog"
	"storefront-backend/checkout"
	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/session"
	"storefront-backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db     *gorm.DB
	engine *cart.Engine
	tokens *utils.TokenIssuer
	router *gin.Engine
}

// newTestEnv wires the handlers the same way the api routes do, against a
// private in-memory database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryDSN("handlers_"+uuid.NewString()[:8]), &gorm.Config{TranslateError: true, Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := zap.NewNop()
	store := catalog.NewStore(db)
	engine := cart.NewEngine(db, store, cart.WithShipping(decimal.RequireFromString("5.00")))
	bridge := session.NewBridge(session.NewMemoryStore(0), engine, nil, log)
	svc := checkout.NewService(db, engine, bridge, nil, nil, 1, log)
	tokens := utils.NewTokenIssuer(config.JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "storefront-backend", AccessTTL: time.Hour})

	authHandler := &AuthHandler{DB: db, Tokens: tokens, Bridge: bridge}
	categoryHandler := &CategoryHandler{Store: store}
	productHandler := &ProductHandler{Store: store}
	cartHandler := &CartHandler{Engine: engine, Bridge: bridge}
	checkoutHandler := &CheckoutHandler{Checkout: svc}
	orderHandler := &OrderHandler{Checkout: svc}
	adminHandler := &AdminHandler{Store: store}

	r := gin.New()
	r.Use(logger.Recovery(log))
	api := r.Group("/api")
	api.Use(session.Middleware(config.SessionConfig{CookieName: "sid", TTL: time.Hour}), middleware.OptionalAuth(tokens))
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/categories", categoryHandler.GetCategories)
	api.GET("/categories/:slug", categoryHandler.GetCategory)
	api.GET("/products", productHandler.GetProducts)
	api.GET("/products/popular", productHandler.GetPopularProducts)
	api.GET("/products/:id", productHandler.GetProduct)
	api.GET("/cart", cartHandler.GetCart)
	api.POST("/cart/items", cartHandler.AddItem)
	api.DELETE("/cart/items/:product_id", cartHandler.RemoveItem)
	api.DELETE("/cart", cartHandler.EmptyCart)
	api.GET("/checkout", checkoutHandler.GetCheckout)
	api.POST("/checkout", checkoutHandler.PlaceOrder)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.GET("/auth/profile", authHandler.GetProfile)
	protected.GET("/orders", orderHandler.GetOrders)
	protected.GET("/orders/:id", orderHandler.GetOrder)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokens), middleware.AdminMiddleware())
	admin.POST("/products/:id/stock", adminHandler.AdjustStock)

	return &testEnv{db: db, engine: engine, tokens: tokens, router: r}
}

func (e *testEnv) category(t *testing.T, name string, parent *models.Category) models.Category {
	t.Helper()
	c := models.Category{Name: name, Slug: models.Slugify(name)}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, e.db.Create(&c).Error)
	return c
}

func (e *testEnv) product(t *testing.T, cat models.Category, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{Name: name, CategoryID: cat.ID, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func (e *testEnv) user(t *testing.T, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{Email: email, Password: string(hash), Name: "Test User", Role: models.RoleCustomer}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

func (e *testEnv) admin(t *testing.T, email, password string) models.User {
	t.Helper()
	u := e.user(t, email, password)
	require.NoError(t, e.db.Model(&u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

// client is a browser: it keeps the session cookie between requests and
// sends its bearer token once logged in.
type client struct {
	env     *testEnv
	cookies []*http.Cookie
	token   string
}

func (e *testEnv) client() *client {
	return &client{env: e}
}

func (c *client) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	w := httptest.NewRecorder()
	c.env.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		c.cookies = cookies
	}
	return w
}

func (c *client) login(t *testing.T, email, password string) loginResponse {
	t.Helper()
	w := c.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp loginResponse
	decode(t, w, &resp)
	c.token = resp.Token
	return resp
}

type loginResponse struct {
	Token       string `json:"token"`
	CartMerged  bool   `json:"cart_merged"`
	MergedLines int    `json:"merged_lines"`
	User        struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
}

type cartResponse struct {
	Cart cart.Totals      `json:"cart"`
	Item *models.CartItem `json:"item"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	decode(t, w, &body)
	return body
}

func quantities(totals cart.Totals) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(totals.Lines))
	for _, l := range totals.Lines {
		out[l.ProductID] = l.Quantity
	}
	return out
}
