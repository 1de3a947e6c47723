package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/logger"
)

const contextKey = "session_id"

// Middleware makes sure every request carries a session id cookie and
// refreshes it on the way out.
func Middleware(cfg config.SessionConfig) gin.HandlerFunc {
	maxAge := int(cfg.TTL.Seconds())
	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.CookieName)
		if err != nil || !validToken(sid) {
			sid, err = NewToken()
			if err != nil {
				logger.FromGin(c).Error("failed to mint session id", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
		}
		c.Set(contextKey, sid)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sid, maxAge, "/", cfg.CookieDomain, cfg.CookieSecure, true)
		c.Next()
	}
}

// ID returns the request's session id, or "" outside the middleware.
func ID(c *gin.Context) string {
	return c.GetString(contextKey)
}
