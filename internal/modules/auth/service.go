package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/mail"
	sessionpkg "github.com/kasumi-cms/core/internal/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrBadCredentials is the uniform login failure. Unknown username, disabled
// account and wrong password are indistinguishable to the caller.
var ErrBadCredentials = errors.New("invalid credentials")

type Service struct {
	db         *gorm.DB
	mailer     mail.Dispatcher
	bcryptCost int
	resetTTL   time.Duration
}

func NewService(db *gorm.DB, mailer mail.Dispatcher, bcryptCost int, resetTTL time.Duration) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if resetTTL <= 0 {
		resetTTL = 24 * time.Hour
	}
	return &Service{db: db, mailer: mailer, bcryptCost: bcryptCost, resetTTL: resetTTL}
}

// Authenticate resolves a username/password pair to an active user. Every
// failure mode collapses into ErrBadCredentials.
func (s *Service) Authenticate(username, password string) (*models.User, error) {
	var u models.User
	err := s.db.Preload("Roles").Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return &u, nil
}

// Login authenticates and opens a session, returning the signed token.
func (s *Service) Login(username, password, ip, ua string) (string, *models.User, error) {
	u, err := s.Authenticate(username, password)
	if err != nil {
		return "", nil, err
	}
	token, _, err := sessionpkg.Issue(s.db, u.ID, ip, ua, sessionpkg.DefaultTTL)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// NotifyLogin mails the account owner that a login happened, when they have
// opted in. Delivery failures never affect the login itself.
func (s *Service) NotifyLogin(ctx context.Context, u *models.User, ip, ua string) {
	if !u.NotifyLogin {
		return
	}
	s.mailer.Dispatch(ctx, mail.Message{
		To:      []string{u.Email},
		Subject: "New login to your account",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour account was just used to log in.\n\nIP address: %s\nClient: %s\n\nIf this was not you, change your password immediately.\n",
			u.DisplayName(), ip, ua),
	})
}

// Logout revokes the current session.
func (s *Service) Logout(userID, sessionID uint) error {
	return sessionpkg.Revoke(s.db, userID, sessionID)
}

// Reauthenticate verifies the current password and restarts the freshness
// window on the session.
func (s *Service) Reauthenticate(u *models.User, sessionID uint, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return ErrBadCredentials
	}
	return sessionpkg.Confirm(s.db, u.ID, sessionID)
}

// RequestReset issues a password reset token for the account behind email.
// The caller gets no signal whether the address exists; an unknown or
// disabled account is silently skipped. Issuing a new token overwrites any
// outstanding one.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	var u models.User
	err := s.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !u.IsActive {
		return nil
	}

	token := uuid.NewString()
	expires := time.Now().Add(s.resetTTL)
	err = s.db.Model(&u).Updates(map[string]interface{}{
		"reset_token":      token,
		"reset_expiration": expires,
	}).Error
	if err != nil {
		return err
	}

	s.mailer.Dispatch(ctx, mail.Message{
		To:      []string{u.Email},
		Subject: "Password reset requested",
		Body: fmt.Sprintf(
			"Hello %s,\n\nA password reset was requested for your account. Use this token to choose a new password:\n\n%s\n\nThe token expires in %d hours. If you did not request this, you can ignore this message.\n",
			u.DisplayName(), token, int(s.resetTTL.Hours())),
	})
	return nil
}

// ResetPassword consumes a reset token. The token must match exactly and be
// unexpired; on success the password is replaced and the token cleared.
func (s *Service) ResetPassword(token, password string) error {
	if token == "" {
		return ErrBadToken
	}
	var u models.User
	err := s.db.Where("reset_token = ? AND reset_expiration > ?", token, time.Now()).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBadToken
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	return s.db.Model(&u).Updates(map[string]interface{}{
		"password":         string(hash),
		"reset_token":      "",
		"reset_expiration": nil,
	}).Error
}

// ErrBadToken is returned for a missing, mismatched or expired reset token.
var ErrBadToken = errors.New("invalid or expired reset token")
