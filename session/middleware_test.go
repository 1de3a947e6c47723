package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sessionRouter(seen *string) *gin.Engine {
	r := gin.New()
	r.Use(Middleware(config.SessionConfig{CookieName: "sid", TTL: time.Hour}))
	r.GET("/", func(c *gin.Context) {
		*seen = ID(c)
		c.Status(http.StatusOK)
	})
	return r
}

func responseCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestMiddlewareMintsSessionID(t *testing.T) {
	var seen string
	r := sessionRouter(&seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, validToken(seen))

	cookie := responseCookie(t, w, "sid")
	assert.Equal(t, seen, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	var seen string
	r := sessionRouter(&seen)
	sid, _ := NewToken()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, sid, seen)
	assert.Equal(t, sid, responseCookie(t, w, "sid").Value)
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	var seen string
	r := sessionRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "guessable-1"})
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "guessable-1", seen)
	assert.True(t, validToken(seen))
}
