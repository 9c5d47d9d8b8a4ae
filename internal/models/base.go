package models

import "time"

// Base is the base model for all entities. IDs are auto-increment integers;
// they are never exposed in admin URLs directly (see internal/pkg/hashid).
type Base struct {
	ID        uint      `json:"-"        gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}
