package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/pkg/response"
	sessionpkg "github.com/kasumi-cms/core/internal/pkg/session"
	"gorm.io/gorm"
)

// RequireRoles gates a route on role membership. It expects Auth to have run
// earlier in the chain. Unauthenticated callers get 401 with the login entry
// point; authenticated callers without an intersecting role get 403.
//
// Ownership scoping (a blogger touching only their own posts) is layered on
// top of this gate inside the post module, because it needs the target
// entity; administrators bypass that scoping entirely.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, LoginPath)
			return
		}
		if !user.HasAnyRole(roles...) {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

// RequireFresh gates sensitive self-service operations (own password change)
// on a recently confirmed authentication. A session outside the freshness
// window is directed to the reauthentication step; the original address is
// carried so the client can come back after confirming.
func RequireFresh(db *gorm.DB, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, LoginPath)
			return
		}
		fresh, err := sessionpkg.IsFresh(db, user.ID, CurrentSessionID(c), window)
		if err != nil {
			response.InternalError(c)
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":             0,
				"code":           http.StatusUnauthorized,
				"message":        "please confirm your password to continue",
				"reauthenticate": ReauthPath,
				"next":           c.Request.URL.Path,
			})
			return
		}
		c.Next()
	}
}

// SafeRedirect reports whether next may be used as a post-login redirect.
// Only same-origin relative paths qualify; anything that could leave the
// site ("//evil", "https://evil", backslash tricks) is rejected.
func SafeRedirect(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return false
	}
	return !strings.Contains(next, "://")
}
