package models

// Tag is a unique post tag name. Tags are created lazily the first time a
// name appears in a post's tag list and are never cleaned up when orphaned.
type Tag struct {
	Base
	Name string `json:"name" gorm:"size:50;uniqueIndex;not null"`
}

func (Tag) TableName() string { return "tags" }
