package models

// FileUpload is the database record for an uploaded static file. Path is
// relative to the configured upload root and unique, which prevents silent
// overwrite. The file bytes themselves live on the filesystem; the row is
// committed before the bytes are written.
type FileUpload struct {
	Base
	Path        string `json:"path"        gorm:"size:512;uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`
	MIME        string `json:"mime"        gorm:"size:127"`
}

func (FileUpload) TableName() string { return "uploads" }
