package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/jwt"
	"github.com/kasumi-cms/core/internal/pkg/response"
	sessionpkg "github.com/kasumi-cms/core/internal/pkg/session"
	"gorm.io/gorm"
)

const (
	ContextKeyUser = "current_user"
	ContextKeySID  = "session_id"

	// LoginPath is where unauthenticated callers are pointed.
	LoginPath = "/api/v1/auth/login"
	// ReauthPath is where stale sessions are pointed before fresh-login
	// operations.
	ReauthPath = "/api/v1/auth/reauthenticate"
)

// Auth enforces JWT authentication bound to an active server-side session
// and loads the caller with their roles into the request context.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, sid, err := resolveCaller(db, extractToken(c))
		if err != nil {
			response.Unauthorized(c, LoginPath)
			return
		}
		c.Set(ContextKeyUser, user)
		c.Set(ContextKeySID, sid)
		c.Next()
	}
}

// OptionalAuth loads the caller if a valid token is present but never blocks.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, sid, err := resolveCaller(db, extractToken(c)); err == nil {
			c.Set(ContextKeyUser, user)
			c.Set(ContextKeySID, sid)
		}
		c.Next()
	}
}

func resolveCaller(db *gorm.DB, rawToken string) (*models.User, uint, error) {
	if rawToken == "" {
		return nil, 0, errors.New("token is required")
	}

	claims, err := jwt.Parse(rawToken)
	if err != nil {
		return nil, 0, err
	}
	active, err := sessionpkg.IsActive(db, claims.UserID, claims.SessionID)
	if err != nil {
		return nil, 0, err
	}
	if !active {
		return nil, 0, errors.New("session expired or revoked")
	}

	var user models.User
	if err := db.Preload("Roles").First(&user, claims.UserID).Error; err != nil {
		return nil, 0, err
	}
	if !user.IsActive {
		return nil, 0, errors.New("account disabled")
	}
	return &user, claims.SessionID, nil
}

// CurrentUser extracts the authenticated user from context (nil if absent).
func CurrentUser(c *gin.Context) *models.User {
	v, _ := c.Get(ContextKeyUser)
	user, _ := v.(*models.User)
	return user
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) uint {
	v, _ := c.Get(ContextKeySID)
	id, _ := v.(uint)
	return id
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return normalizeToken(auth)
	}
	return normalizeToken(c.Query("token"))
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
