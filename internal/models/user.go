package models

import "time"

// User is a staff account. Password holds only a bcrypt hash, never
// plaintext. ResetToken/ResetExpiration implement password recovery: a token
// is valid only while unexpired and matching exactly, and issuing a new token
// overwrites (and thereby invalidates) any outstanding one.
type User struct {
	Base
	Username        string     `json:"username"     gorm:"size:50;uniqueIndex;not null"`
	Email           string     `json:"email"        gorm:"size:255;uniqueIndex;not null"`
	Password        string     `json:"-"            gorm:"size:255;not null"`
	ResetToken      string     `json:"-"            gorm:"size:100"`
	ResetExpiration *time.Time `json:"-"`
	IsActive        bool       `json:"is_active"    gorm:"default:false"`
	FirstName       string     `json:"first_name"   gorm:"size:50"`
	LastName        string     `json:"last_name"    gorm:"size:50"`
	PersonalBio     string     `json:"personal_bio" gorm:"size:1024"`
	NotifyLogin     bool       `json:"notify_login" gorm:"default:true"`

	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles"`
	Posts []Post `json:"-"               gorm:"many2many:user_posts"`
}

func (User) TableName() string { return "users" }

// RoleNames returns the user's role names.
func (u *User) RoleNames() []string {
	names := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		names[i] = r.Name
	}
	return names
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the named roles.
func (u *User) HasAnyRole(names ...string) bool {
	for _, n := range names {
		if u.HasRole(n) {
			return true
		}
	}
	return false
}

// DisplayName returns "First Last" when both are set, username otherwise.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}
