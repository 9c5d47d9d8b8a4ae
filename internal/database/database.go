package database

import (
	"errors"
	"fmt"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/kasumi-cms/core/internal/config"
	"github.com/kasumi-cms/core/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and runs auto-migration plus role seeding.
func Connect(cfg *config.AppConfig) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

// Migrate runs GORM auto-migration for all models and seeds the role table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.Role{},
		&models.Tag{},
		&models.Page{},
		&models.Post{},
		&models.FileUpload{},
		&models.Option{},
	); err != nil {
		return err
	}
	return SeedRoles(db)
}

// SeedRoles inserts the closed role set, skipping names that already exist.
// Roles are never created through the admin surface.
func SeedRoles(db *gorm.DB) error {
	for _, name := range models.RoleNames {
		var count int64
		if err := db.Model(&models.Role{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Create(&models.Role{Name: name}).Error; err != nil && !IsDuplicateError(err) {
				return err
			}
		}
	}
	return nil
}

// ConflictError marks a uniqueness violation on a specific field so handlers
// can surface a field-level message instead of a generic failure.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " is already in use"
}

// AsConflict returns the ConflictError inside err, or nil.
func AsConflict(err error) *ConflictError {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// IsDuplicateError reports whether err is a uniqueness-constraint violation.
// MySQL signals these as error 1062; the message checks cover SQLite (tests)
// and drivers that only wrap the text.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
