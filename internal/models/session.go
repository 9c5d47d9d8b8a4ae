package models

import "time"

// UserSession is a server-side login session bound to a JWT via its ID.
// ConfirmedAt tracks when credentials were last confirmed; sensitive
// operations require it to be within the configured freshness window.
type UserSession struct {
	Base
	UserID      uint       `json:"-"            gorm:"index;not null"`
	IP          string     `json:"ip"           gorm:"size:64"`
	UA          string     `json:"ua"           gorm:"size:255"`
	ExpiresAt   time.Time  `json:"expires_at"   gorm:"not null"`
	ConfirmedAt time.Time  `json:"confirmed_at" gorm:"not null"`
	RevokedAt   *time.Time `json:"-"`
}

func (UserSession) TableName() string { return "user_sessions" }
