package backup

import (
	"strings"
	"testing"
	"time"

	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"go.uber.org/zap"
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

func TestImportLinksRelationsByNaturalKey(t *testing.T) {
	db := setupTestDB(t)

	// The ghost and author lines come before their targets on purpose:
	// all linking happens after every row exists.
	dump := strings.Join([]string{
		`{"entity":"post","data":{"title":"Old Address","slug":"old-address","ghosted":"new-address","authors":["alice"]}}`,
		`{"entity":"user","data":{"username":"alice","email":"alice@example.com","password":"$2a$04$hash","is_active":true,"roles":["blogger"]}}`,
		`{"entity":"post","data":{"title":"New Address","slug":"new-address","is_published":true,"authors":["alice"],"tags":["go","web"]}}`,
		`{"entity":"page","data":{"title":"About","slug":"about","route":"/about","is_published":true}}`,
		`{"entity":"page","data":{"title":"Info","slug":"info","route":"/info","ghosted":"/about"}}`,
		`{"entity":"option","data":{"name":"site_name","value":"Imported Site"}}`,
		`{"entity":"tag","data":{"name":"extra"}}`,
	}, "\n")

	stats, err := NewImporter(db, zap.NewNop()).Run(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Users != 1 || stats.Posts != 2 || stats.Pages != 2 || stats.Options != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Linked != 2 {
		t.Errorf("linked = %d, want 2", stats.Linked)
	}

	var alias models.Post
	if err := db.Preload("Authors").Where("slug = ?", "old-address").First(&alias).Error; err != nil {
		t.Fatalf("alias post: %v", err)
	}
	var target models.Post
	if err := db.Preload("Tags").Where("slug = ?", "new-address").First(&target).Error; err != nil {
		t.Fatalf("target post: %v", err)
	}
	if alias.GhostedID == nil || *alias.GhostedID != target.ID {
		t.Errorf("post ghost link = %v, want %d", alias.GhostedID, target.ID)
	}
	if len(alias.Authors) != 1 || alias.Authors[0].Username != "alice" {
		t.Errorf("authors = %+v, want alice", alias.Authors)
	}
	if len(target.Tags) != 2 {
		t.Errorf("tags = %v, want 2", target.Tags)
	}

	var ghostPage models.Page
	if err := db.Where("route = ?", "/info").First(&ghostPage).Error; err != nil {
		t.Fatalf("ghost page: %v", err)
	}
	var targetPage models.Page
	if err := db.Where("route = ?", "/about").First(&targetPage).Error; err != nil {
		t.Fatalf("target page: %v", err)
	}
	if ghostPage.GhostedID == nil || *ghostPage.GhostedID != targetPage.ID {
		t.Errorf("page ghost link = %v, want %d", ghostPage.GhostedID, targetPage.ID)
	}

	var u models.User
	if err := db.Preload("Roles").Where("username = ?", "alice").First(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	if !u.HasRole(models.RoleBlogger) {
		t.Error("imported role missing")
	}
}

// A dump exactly as the legacy exporter writes it: numeric booleans,
// "YYYY-MM-DD HH:MM:SS" timestamps, null ghosted fields with the ghost key
// shimmed into the content, and pages carrying only their full route.
func TestImportReadsLegacyExportFormat(t *testing.T) {
	db := setupTestDB(t)

	dump := strings.Join([]string{
		`{"entity": "post", "data": {"title": "Moved", "slug": "moved", "content": "[GHOST: hello]\n\nold body", "is_published": 1, "comments_enabled": 0, "last_updated": "2019-03-04 10:30:00", "authors": ["alice"], "ghosted": null, "tags": []}}`,
		`{"entity": "post", "data": {"title": "Hello", "slug": "hello", "content": "body", "is_published": 1, "comments_enabled": 1, "last_updated": "2019-03-04 10:30:00", "authors": ["alice"], "ghosted": null, "tags": ["news"]}}`,
		`{"entity": "user", "data": {"username": "alice", "password": "$2a$04$hash", "reset_password_token": "", "email": "alice@example.com", "is_active": 1, "first_name": "Alice", "last_name": "A", "personal_bio": "", "notify_login": 0, "roles": ["administrator"]}}`,
		`{"entity": "page", "data": {"title": "About Me", "mini": "about", "route": "/info/about", "custom_head": "", "content": "hi", "is_published": 1, "comments_enabled": 0, "ghosted": null, "last_updated": "2019-03-04 10:30:00"}}`,
		`{"entity": "upload", "data": {"path": "img/a.png", "description": "", "mime": "UNKOWN", "uploaded_at": "2019-03-04 10:30:00"}}`,
	}, "\n")

	stats, err := NewImporter(db, zap.NewNop()).Run(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Users != 1 || stats.Posts != 2 || stats.Pages != 1 || stats.Uploads != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Linked != 1 {
		t.Errorf("linked = %d, want 1", stats.Linked)
	}

	var alias, target models.Post
	if err := db.Where("slug = ?", "moved").First(&alias).Error; err != nil {
		t.Fatalf("alias post: %v", err)
	}
	if err := db.Where("slug = ?", "hello").First(&target).Error; err != nil {
		t.Fatalf("target post: %v", err)
	}
	if alias.GhostedID == nil || *alias.GhostedID != target.ID {
		t.Errorf("shimmed ghost link = %v, want %d", alias.GhostedID, target.ID)
	}
	if alias.Content != "old body" {
		t.Errorf("content = %q, shim not stripped", alias.Content)
	}
	want := time.Date(2019, 3, 4, 10, 30, 0, 0, time.UTC)
	if !target.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want %v", target.UpdatedAt, want)
	}

	var p models.Page
	if err := db.Where("route = ?", "/info/about").First(&p).Error; err != nil {
		t.Fatalf("page: %v", err)
	}
	if p.Slug != "about" || p.BaseRoute != "/info" {
		t.Errorf("derived address = %q + %q, want /info + about", p.BaseRoute, p.Slug)
	}

	var u models.User
	if err := db.Where("username = ?", "alice").First(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	if !u.IsActive || u.NotifyLogin {
		t.Errorf("numeric booleans mishandled: active=%v notify=%v", u.IsActive, u.NotifyLogin)
	}
}

func TestImportRejectsDanglingGhost(t *testing.T) {
	db := setupTestDB(t)

	dump := `{"entity":"page","data":{"title":"Orphan","slug":"orphan","route":"/orphan","ghosted":"/missing"}}`
	if _, err := NewImporter(db, zap.NewNop()).Run(strings.NewReader(dump)); err == nil {
		t.Fatal("dangling ghost accepted")
	}

	// The transaction rolled back; nothing was imported.
	var count int64
	db.Model(&models.Page{}).Count(&count)
	if count != 0 {
		t.Errorf("pages = %d after failed import, want 0", count)
	}
}

func TestImportRejectsUnknownAuthor(t *testing.T) {
	db := setupTestDB(t)

	dump := `{"entity":"post","data":{"title":"P","slug":"p","authors":["nobody"]}}`
	if _, err := NewImporter(db, zap.NewNop()).Run(strings.NewReader(dump)); err == nil {
		t.Fatal("unknown author accepted")
	}
}

func TestImportSkipsUnknownEntities(t *testing.T) {
	db := setupTestDB(t)

	dump := strings.Join([]string{
		`{"entity":"comment","data":{"body":"legacy"}}`,
		`{"entity":"tag","data":{"name":"kept"}}`,
	}, "\n")
	stats, err := NewImporter(db, zap.NewNop()).Run(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Skipped != 1 || stats.Tags != 1 {
		t.Errorf("stats = %+v, want 1 skipped and 1 tag", stats)
	}
}
