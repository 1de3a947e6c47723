package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-backend/logger"
	"storefront-backend/models"
)

// UserActivity stamps last_active_at for authenticated requests. The
// conditional UPDATE writes at most once per interval and user, on any
// number of instances. It must run after OptionalAuth or AuthMiddleware.
func UserActivity(db *gorm.DB, interval time.Duration) gin.HandlerFunc {
	return userActivity(db, interval, time.Now)
}

func userActivity(db *gorm.DB, interval time.Duration, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := UserID(c); userID != nil {
			ts := now().UTC()
			err := db.WithContext(c.Request.Context()).
				Model(&models.User{}).
				Where("id = ? AND (last_active_at IS NULL OR last_active_at < ?)", *userID, ts.Add(-interval)).
				UpdateColumn("last_active_at", ts).Error
			if err != nil {
				logger.FromGin(c).Warn("failed to record user activity", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
		c.Next()
	}
}
