package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/mail"
	sessionpkg "github.com/kasumi-cms/core/internal/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type capturingDispatcher struct {
	messages []mail.Message
}

func (d *capturingDispatcher) Dispatch(_ context.Context, msg mail.Message) {
	d.messages = append(d.messages, msg)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
		IsActive: active,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newTestService(db *gorm.DB) (*Service, *capturingDispatcher) {
	d := &capturingDispatcher{}
	return NewService(db, d, bcrypt.MinCost, 24*time.Hour), d
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(db)
	createTestUser(t, db, "alice", "correct-horse", true)
	createTestUser(t, db, "sleepy", "whatever", false)

	cases := []struct {
		name               string
		username, password string
	}{
		{"unknown user", "nobody", "correct-horse"},
		{"wrong password", "alice", "wrong"},
		{"inactive account", "sleepy", "whatever"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(tc.username, tc.password)
			if !errors.Is(err, ErrBadCredentials) {
				t.Errorf("err = %v, want ErrBadCredentials", err)
			}
		})
	}
}

func TestLoginIssuesSession(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(db)
	u := createTestUser(t, db, "alice", "correct-horse", true)

	token, got, err := svc.Login("alice", "correct-horse", "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Error("empty token")
	}
	if got.ID != u.ID {
		t.Errorf("user = %d, want %d", got.ID, u.ID)
	}

	var count int64
	db.Model(&models.UserSession{}).Where("user_id = ?", u.ID).Count(&count)
	if count != 1 {
		t.Errorf("session rows = %d, want 1", count)
	}
}

func TestNotifyLoginHonorsPreference(t *testing.T) {
	db := setupTestDB(t)
	svc, dispatched := newTestService(db)
	u := createTestUser(t, db, "alice", "pw", true)

	u.NotifyLogin = false
	svc.NotifyLogin(context.Background(), u, "1.2.3.4", "agent")
	if len(dispatched.messages) != 0 {
		t.Fatalf("mail sent despite opt-out")
	}

	u.NotifyLogin = true
	svc.NotifyLogin(context.Background(), u, "1.2.3.4", "agent")
	if len(dispatched.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(dispatched.messages))
	}
	if !strings.Contains(dispatched.messages[0].Body, "1.2.3.4") {
		t.Error("login notification missing IP")
	}
}

func TestRequestResetIsSilentForUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	svc, dispatched := newTestService(db)

	if err := svc.RequestReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("unknown email: %v", err)
	}
	if len(dispatched.messages) != 0 {
		t.Error("mail sent for unknown address")
	}
}

func TestResetTokenRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc, dispatched := newTestService(db)
	u := createTestUser(t, db, "alice", "old-password", true)

	if err := svc.RequestReset(context.Background(), u.Email); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(dispatched.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(dispatched.messages))
	}

	var stored models.User
	if err := db.First(&stored, u.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.ResetToken == "" || stored.ResetExpiration == nil {
		t.Fatal("token not persisted")
	}
	if !strings.Contains(dispatched.messages[0].Body, stored.ResetToken) {
		t.Error("mail does not carry the token")
	}

	if err := svc.ResetPassword(stored.ResetToken, "new-password"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Authenticate("alice", "new-password"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, err := svc.Authenticate("alice", "old-password"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("old password still works: %v", err)
	}

	// The token is single-use.
	if err := svc.ResetPassword(stored.ResetToken, "again"); !errors.Is(err, ErrBadToken) {
		t.Errorf("reused token = %v, want ErrBadToken", err)
	}
}

func TestExpiredResetTokenRejected(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(db)
	u := createTestUser(t, db, "alice", "pw", true)

	past := time.Now().Add(-time.Hour)
	if err := db.Model(u).Updates(map[string]interface{}{
		"reset_token":      "stale-token",
		"reset_expiration": past,
	}).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if err := svc.ResetPassword("stale-token", "new"); !errors.Is(err, ErrBadToken) {
		t.Errorf("expired token = %v, want ErrBadToken", err)
	}
}

func TestNewResetTokenInvalidatesOld(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(db)
	u := createTestUser(t, db, "alice", "pw", true)

	if err := svc.RequestReset(context.Background(), u.Email); err != nil {
		t.Fatalf("first request: %v", err)
	}
	var first models.User
	db.First(&first, u.ID)

	if err := svc.RequestReset(context.Background(), u.Email); err != nil {
		t.Fatalf("second request: %v", err)
	}

	if err := svc.ResetPassword(first.ResetToken, "new"); !errors.Is(err, ErrBadToken) {
		t.Errorf("overwritten token = %v, want ErrBadToken", err)
	}
}

func TestReauthenticateRestartsFreshness(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(db)
	u := createTestUser(t, db, "alice", "pw", true)

	_, s, err := sessionpkg.Issue(db, u.ID, "127.0.0.1", "agent", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Age the confirmation beyond the freshness window.
	stale := time.Now().Add(-time.Hour)
	db.Model(s).Update("confirmed_at", stale)

	fresh, err := sessionpkg.IsFresh(db, u.ID, s.ID, 15*time.Minute)
	if err != nil || fresh {
		t.Fatalf("IsFresh before reauth = %v, %v", fresh, err)
	}

	if err := svc.Reauthenticate(u, s.ID, "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("wrong password = %v, want ErrBadCredentials", err)
	}
	if err := svc.Reauthenticate(u, s.ID, "pw"); err != nil {
		t.Fatalf("reauth: %v", err)
	}

	fresh, err = sessionpkg.IsFresh(db, u.ID, s.ID, 15*time.Minute)
	if err != nil || !fresh {
		t.Errorf("IsFresh after reauth = %v, %v, want true", fresh, err)
	}
}
