package reader

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/modules/page"
	"github.com/kasumi-cms/core/internal/modules/post"
	"github.com/kasumi-cms/core/internal/modules/settings"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
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

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(page.NewService(db), post.NewService(db), settings.NewService(db), zap.NewNop())
	h.RegisterRoutes(r)
	return r, db
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestServePublishedPage(t *testing.T) {
	r, db := setupTestServer(t)
	db.Create(&models.Page{
		Title: "About", Slug: "about", BaseRoute: "/", Route: "/about",
		Content: "# Hello", IsPublished: true,
	})

	w := get(r, "/about")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["content"].(string), "<h1") {
		t.Errorf("markdown not rendered: %v", body["content"])
	}
}

func TestUnpublishedPageIs404(t *testing.T) {
	r, db := setupTestServer(t)
	db.Create(&models.Page{
		Title: "Draft", Slug: "draft", BaseRoute: "/", Route: "/draft",
		IsPublished: false,
	})

	if w := get(r, "/draft"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGhostPageRedirects(t *testing.T) {
	r, db := setupTestServer(t)
	target := models.Page{
		Title: "New Home", Slug: "new-home", BaseRoute: "/", Route: "/new-home",
		IsPublished: true,
	}
	db.Create(&target)
	db.Create(&models.Page{
		Title: "Old Home", Slug: "old-home", BaseRoute: "/", Route: "/old-home",
		IsPublished: true, GhostedID: &target.ID,
	})

	w := get(r, "/old-home")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/new-home" {
		t.Errorf("location = %q, want /new-home", loc)
	}
}

func TestGhostToUnpublishedTargetIs404(t *testing.T) {
	r, db := setupTestServer(t)
	target := models.Page{
		Title: "Hidden", Slug: "hidden", BaseRoute: "/", Route: "/hidden",
		IsPublished: false,
	}
	db.Create(&target)
	db.Create(&models.Page{
		Title: "Alias", Slug: "alias", BaseRoute: "/", Route: "/alias",
		IsPublished: true, GhostedID: &target.ID,
	})

	if w := get(r, "/alias"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSelfReferentialGhostIs404(t *testing.T) {
	r, db := setupTestServer(t)
	p := models.Page{
		Title: "Loop", Slug: "loop", BaseRoute: "/", Route: "/loop",
		IsPublished: true,
	}
	db.Create(&p)
	db.Model(&p).Update("ghosted_id", p.ID)

	if w := get(r, "/loop"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGhostPostRedirectsSingleHop(t *testing.T) {
	r, db := setupTestServer(t)
	c := models.Post{Title: "C", Slug: "c", IsPublished: true}
	db.Create(&c)
	b := models.Post{Title: "B", Slug: "b", IsPublished: true, GhostedID: &c.ID}
	db.Create(&b)
	a := models.Post{Title: "A", Slug: "a", IsPublished: true, GhostedID: &b.ID}
	db.Create(&a)

	// One hop only: A redirects to B's address even though B is itself a
	// ghost; the next request resolves B.
	w := get(r, "/blog/a")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/blog/b" {
		t.Errorf("location = %q, want /blog/b", loc)
	}
}

func TestBlogIndexFiltersByTagAndAuthor(t *testing.T) {
	r, db := setupTestServer(t)

	alice := models.User{Username: "alice", Email: "a@example.com", Password: "x", IsActive: true}
	db.Create(&alice)
	goTag := models.Tag{Name: "go"}
	db.Create(&goTag)

	p1 := models.Post{Title: "Go Post", Slug: "go-post", IsPublished: true}
	db.Create(&p1)
	db.Model(&p1).Association("Tags").Append(&goTag)
	db.Model(&p1).Association("Authors").Append(&alice)

	p2 := models.Post{Title: "Other", Slug: "other", IsPublished: true}
	db.Create(&p2)

	db.Create(&models.Post{Title: "Draft", Slug: "draft", IsPublished: false})

	check := func(path string, want int) {
		t.Helper()
		w := get(r, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		var body struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Data) != want {
			t.Errorf("%s returned %d posts, want %d", path, len(body.Data), want)
		}
	}

	check("/blog", 2)
	check("/blog?tag=go", 1)
	check("/blog?author=alice", 1)
	check("/blog?tag=missing", 0)
}

func TestUnknownRouteIs404(t *testing.T) {
	r, _ := setupTestServer(t)
	if w := get(r, "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
