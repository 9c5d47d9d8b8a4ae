package models

// Role names form a closed set seeded at migration time. The admin surface
// assigns existing roles by name; it never creates new ones.
const (
	RoleAdministrator = "administrator"
	RoleBlogger       = "blogger"
	RoleEditor        = "editor"
	RoleUploader      = "uploader"
)

// RoleNames lists every role recognized by the application.
var RoleNames = []string{RoleAdministrator, RoleBlogger, RoleEditor, RoleUploader}

// Role is a named permission group attached to users many-to-many.
type Role struct {
	Base
	Name string `json:"name" gorm:"size:50;uniqueIndex;not null"`
}

func (Role) TableName() string { return "roles" }

// KnownRole reports whether name is part of the closed role set.
func KnownRole(name string) bool {
	for _, n := range RoleNames {
		if n == name {
			return true
		}
	}
	return false
}
