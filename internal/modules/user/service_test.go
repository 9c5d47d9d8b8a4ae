package user

import (
	"errors"
	"testing"

	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"golang.org/x/crypto/bcrypt"
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

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTestDB(t), bcrypt.MinCost)
}

func TestCreateHashesPassword(t *testing.T) {
	svc := newTestService(t)

	u, err := svc.Create(&CreateUserDTO{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret-password",
		IsActive: true,
		Roles:    []string{models.RoleBlogger},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Password == "secret-password" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret-password")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if !u.HasRole(models.RoleBlogger) {
		t.Error("role not assigned")
	}
}

func TestCreateConflictNamesField(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(&CreateUserDTO{Username: "alice", Email: "alice@example.com", Password: "password1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.Create(&CreateUserDTO{Username: "alice", Email: "other@example.com", Password: "password1"})
	if ce := database.AsConflict(err); ce == nil || ce.Field != "username" {
		t.Errorf("duplicate username = %v, want conflict on username", err)
	}

	_, err = svc.Create(&CreateUserDTO{Username: "bob", Email: "alice@example.com", Password: "password1"})
	if ce := database.AsConflict(err); ce == nil || ce.Field != "email" {
		t.Errorf("duplicate email = %v, want conflict on email", err)
	}
}

func TestSetRolesRejectsUnknown(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.Create(&CreateUserDTO{Username: "alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.SetRoles(u.ID, []string{"superhero"}); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("unknown role = %v, want ErrUnknownRole", err)
	}

	updated, err := svc.SetRoles(u.ID, []string{models.RoleEditor, models.RoleUploader})
	if err != nil {
		t.Fatalf("set roles: %v", err)
	}
	if len(updated.Roles) != 2 {
		t.Errorf("roles = %v, want 2", updated.RoleNames())
	}

	cleared, err := svc.SetRoles(u.ID, nil)
	if err != nil {
		t.Fatalf("clear roles: %v", err)
	}
	if len(cleared.Roles) != 0 {
		t.Errorf("roles after clear = %v, want none", cleared.RoleNames())
	}
}

func TestChangePasswordChecksCurrent(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.Create(&CreateUserDTO{Username: "alice", Email: "alice@example.com", Password: "old-password"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ChangePassword(u.ID, "wrong", "new-password"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("wrong current = %v, want ErrBadPassword", err)
	}
	if err := svc.ChangePassword(u.ID, "old-password", "new-password"); err != nil {
		t.Fatalf("change: %v", err)
	}

	reloaded, err := svc.GetByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(reloaded.Password), []byte("new-password")); err != nil {
		t.Errorf("new password does not verify: %v", err)
	}
}

func TestProfileEditCannotTouchRolesOrActivation(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.Create(&CreateUserDTO{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
		IsActive: true,
		Roles:    []string{models.RoleBlogger},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, bio := "Alice", "Writes things."
	updated, err := svc.UpdateProfile(u.ID, &ProfileDTO{FirstName: &first, PersonalBio: &bio})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FirstName != "Alice" || updated.PersonalBio != "Writes things." {
		t.Errorf("profile fields not applied: %+v", updated)
	}

	reloaded, _ := svc.GetByID(u.ID)
	if !reloaded.IsActive || !reloaded.HasRole(models.RoleBlogger) {
		t.Error("profile edit changed activation or roles")
	}
}

func TestDeleteUserClearsRoleLinks(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.Create(&CreateUserDTO{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
		Roles:    []string{models.RoleBlogger},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := svc.GetByID(u.ID); got != nil {
		t.Error("user still present after delete")
	}

	// The role itself survives; only the link rows go.
	var count int64
	svc.db.Model(&models.Role{}).Count(&count)
	if count != int64(len(models.RoleNames)) {
		t.Errorf("role count = %d, want %d", count, len(models.RoleNames))
	}
}

func TestDeleteUserClearsAuthorshipLinks(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.Create(&CreateUserDTO{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
		Roles:    []string{models.RoleBlogger},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p := models.Post{Title: "Post", Slug: "post"}
	if err := svc.db.Create(&p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	if err := svc.db.Model(&p).Association("Authors").Append(u); err != nil {
		t.Fatalf("attach author: %v", err)
	}

	if err := svc.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The post survives without the dangling authorship row.
	var links int64
	svc.db.Table("user_posts").Where("user_id = ?", u.ID).Count(&links)
	if links != 0 {
		t.Errorf("authorship rows = %d after delete, want 0", links)
	}
	var kept models.Post
	if err := svc.db.First(&kept, p.ID).Error; err != nil {
		t.Errorf("post deleted along with author: %v", err)
	}
}
