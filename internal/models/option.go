package models

// Option is a generic key-value store for site settings.
type Option struct {
	ID    uint   `json:"-"     gorm:"primaryKey;autoIncrement"`
	Name  string `json:"name"  gorm:"size:255;uniqueIndex;not null"`
	Value string `json:"value" gorm:"type:longtext"` // JSON-encoded value
}

func (Option) TableName() string { return "options" }
