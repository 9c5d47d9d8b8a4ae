package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/models"
	sessionpkg "github.com/kasumi-cms/core/internal/pkg/session"
)

func TestAuthAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice", models.RoleAdministrator)

	token, s, err := sessionpkg.Issue(db, u.ID, "127.0.0.1", "agent", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.GET("/me", Auth(db), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": CurrentUser(c).Username})
	})

	hit := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := hit("Bearer " + token); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
	if w := hit(token); w.Code != http.StatusOK {
		t.Errorf("bare token = %d, want 200", w.Code)
	}
	if w := hit(""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := hit("Bearer garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token = %d, want 401", w.Code)
	}

	// A revoked session invalidates the still-unexpired JWT.
	if err := sessionpkg.Revoke(db, u.ID, s.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if w := hit("Bearer " + token); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked session = %d, want 401", w.Code)
	}
}

func TestAuthRejectsDisabledAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice", models.RoleAdministrator)

	token, _, err := sessionpkg.Issue(db, u.ID, "127.0.0.1", "agent", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	db.Model(u).Update("is_active", false)

	r := gin.New()
	r.GET("/me", Auth(db), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("disabled account = %d, want 401", w.Code)
	}
}
