package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront-backend/database"
	"storefront-backend/models"
)

func setupActivityDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryDSN("activity_"+uuid.NewString()[:8]), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func lastActive(t *testing.T, db *gorm.DB, id uuid.UUID) *time.Time {
	t.Helper()
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		t.Fatal(err)
	}
	return u.LastActiveAt
}

func TestUserActivityStampsAuthenticatedUsers(t *testing.T) {
	db := setupActivityDB(t)
	issuer := newIssuer(time.Hour)
	user := models.User{Email: "active@example.com", Password: "x", Role: models.RoleCustomer}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	token, err := issuer.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := gin.New()
	r.Use(OptionalAuth(issuer), userActivity(db, 5*time.Minute, func() time.Time { return now }))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	ping := func(auth string) {
		t.Helper()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	}

	ping("")
	if got := lastActive(t, db, user.ID); got != nil {
		t.Fatalf("anonymous request must not stamp anyone, got %v", got)
	}

	ping("Bearer " + token)
	first := now
	if got := lastActive(t, db, user.ID); got == nil || !got.Equal(first) {
		t.Fatalf("expected last_active_at %v, got %v", first, got)
	}

	// Within the interval the stamp is left alone.
	now = now.Add(time.Minute)
	ping("Bearer " + token)
	if got := lastActive(t, db, user.ID); got == nil || !got.Equal(first) {
		t.Fatalf("expected throttled stamp %v, got %v", first, got)
	}

	now = now.Add(10 * time.Minute)
	ping("Bearer " + token)
	if got := lastActive(t, db, user.ID); got == nil || !got.Equal(now) {
		t.Fatalf("expected refreshed stamp %v, got %v", now, got)
	}
}
