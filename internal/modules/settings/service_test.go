package settings

import (
	"testing"

	"github.com/kasumi-cms/core/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGetFallsBackToDefault(t *testing.T) {
	svc := NewService(setupTestDB(t))

	v, err := svc.Get(OptSiteName)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "Kasumi" {
		t.Errorf("site_name default = %q", v)
	}
}

func TestSetPersistsAndCaches(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	if err := svc.Set(OptSiteName, "My Site"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := svc.Get(OptSiteName); v != "My Site" {
		t.Errorf("get after set = %q", v)
	}

	// A second service over the same DB sees the stored value.
	fresh := NewService(db)
	if v, _ := fresh.Get(OptSiteName); v != "My Site" {
		t.Errorf("get from fresh service = %q", v)
	}

	// Overwrite updates the existing row instead of inserting a second one.
	if err := svc.Set(OptSiteName, "Renamed"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	var count int64
	db.Table("options").Where("name = ?", OptSiteName).Count(&count)
	if count != 1 {
		t.Errorf("option rows = %d, want 1", count)
	}
}

func TestAllowedExtensionsParsing(t *testing.T) {
	svc := NewService(setupTestDB(t))

	if err := svc.Set(OptAllowedExtensions, " PNG, .jpg , gif ,,"); err != nil {
		t.Fatalf("set: %v", err)
	}
	exts, err := svc.AllowedExtensions()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"png", "jpg", "gif"}
	if len(exts) != len(want) {
		t.Fatalf("exts = %v, want %v", exts, want)
	}
	for i := range want {
		if exts[i] != want[i] {
			t.Errorf("exts[%d] = %q, want %q", i, exts[i], want[i])
		}
	}
}

func TestAllMergesDefaults(t *testing.T) {
	svc := NewService(setupTestDB(t))

	if err := svc.Set("custom_key", "custom"); err != nil {
		t.Fatalf("set: %v", err)
	}
	all, err := svc.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if all["custom_key"] != "custom" {
		t.Error("custom key missing")
	}
	if all[OptFeedTitle] == "" {
		t.Error("default missing from merged view")
	}
}
