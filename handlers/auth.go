package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/session"
	"storefront-backend/utils"
)

type AuthHandler struct {
	DB     *gorm.DB
	Tokens *utils.TokenIssuer
	Bridge *session.Bridge
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name" binding:"max=100"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:    strings.ToLower(req.Email),
		Password: string(hashedPassword),
		Name:     req.Name,
		Role:     models.RoleCustomer,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		respondError(c, err)
		return
	}

	h.signIn(c, http.StatusCreated, &user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.IsBlocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "Your account has been blocked. Please contact support."})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.signIn(c, http.StatusOK, &user)
}

// signIn issues a token and moves the session's anonymous cart into the
// user's cart. A failed merge does not fail the login; the token stays in
// the session and the next login tries again.
func (h *AuthHandler) signIn(c *gin.Context, status int, user *models.User) {
	token, err := h.Tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	merged := 0
	res, err := h.Bridge.OnLogin(c.Request.Context(), session.ID(c), user.ID)
	if err != nil {
		logger.FromGin(c).Warn("cart merge on login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else if res.Merged {
		merged = res.Moved + res.Combined
	}

	c.JSON(status, gin.H{
		"token":        token,
		"user":         userResponse(user),
		"cart_merged":  res.Merged,
		"merged_lines": merged,
	})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("id = ?", *userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, userResponse(&user))
}
