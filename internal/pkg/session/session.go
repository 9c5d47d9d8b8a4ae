package session

import (
	"time"

	"github.com/kasumi-cms/core/internal/models"
	jwtpkg "github.com/kasumi-cms/core/internal/pkg/jwt"
	"gorm.io/gorm"
)

// DefaultTTL is how long a login session lives without being revoked.
const DefaultTTL = 30 * 24 * time.Hour

// Issue creates a DB session and signs a JWT bound to it. ConfirmedAt is set
// to now: a freshly issued session counts as a fresh login.
func Issue(db *gorm.DB, userID uint, ip, ua string, ttl time.Duration) (string, *models.UserSession, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	s := &models.UserSession{
		UserID:      userID,
		IP:          ip,
		UA:          ua,
		ExpiresAt:   now.Add(ttl),
		ConfirmedAt: now,
	}
	if err := db.Create(s).Error; err != nil {
		return "", nil, err
	}

	token, err := jwtpkg.Sign(userID, s.ID, ttl)
	if err != nil {
		_ = db.Delete(s).Error
		return "", nil, err
	}
	return token, s, nil
}

// IsActive reports whether the session exists, is unexpired and unrevoked.
func IsActive(db *gorm.DB, userID, sessionID uint) (bool, error) {
	var count int64
	err := db.Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?", sessionID, userID, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsFresh reports whether credentials were confirmed within the window.
func IsFresh(db *gorm.DB, userID, sessionID uint, window time.Duration) (bool, error) {
	var s models.UserSession
	err := db.Select("confirmed_at").
		Where("id = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?", sessionID, userID, time.Now()).
		First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return time.Since(s.ConfirmedAt) <= window, nil
}

// Confirm records a successful reauthentication, restarting the freshness
// window.
func Confirm(db *gorm.DB, userID, sessionID uint) error {
	return db.Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, userID).
		Update("confirmed_at", time.Now()).Error
}

// Revoke ends a session (logout).
func Revoke(db *gorm.DB, userID, sessionID uint) error {
	now := time.Now()
	res := db.Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, userID).
		Update("revoked_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
