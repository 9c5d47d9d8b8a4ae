package upload

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/modules/settings"
	"github.com/kasumi-cms/core/internal/pkg/pagination"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"gorm.io/gorm"
)

// ErrBadExtension is returned when a file's extension is not on the
// allow-list.
var ErrBadExtension = errors.New("file type is not allowed")

// ErrBadPath is returned when the requested subdirectory escapes the upload
// root.
var ErrBadPath = errors.New("invalid upload path")

type Service struct {
	db       *gorm.DB
	settings *settings.Service
	root     string
}

func NewService(db *gorm.DB, st *settings.Service, root string) *Service {
	return &Service{db: db, settings: st, root: root}
}

func (s *Service) List(q pagination.Query) ([]models.FileUpload, response.Pagination, error) {
	tx := s.db.Model(&models.FileUpload{}).Order("created_at DESC")
	var files []models.FileUpload
	pag, err := pagination.Paginate(tx, q, &files)
	return files, pag, err
}

func (s *Service) GetByID(id uint) (*models.FileUpload, error) {
	var f models.FileUpload
	err := s.db.First(&f, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// Store validates and persists an uploaded file. The database row commits
// before the file is written, so a duplicate path is caught without touching
// the disk; a failed write then removes the row again, best-effort.
func (s *Service) Store(fh *multipart.FileHeader, subdir, description string) (*models.FileUpload, error) {
	name := filepath.Base(fh.Filename)
	if err := s.checkExtension(name); err != nil {
		return nil, err
	}

	rel, err := s.relativePath(subdir, name)
	if err != nil {
		return nil, err
	}

	f := models.FileUpload{
		Path:        rel,
		Description: description,
		MIME:        fh.Header.Get("Content-Type"),
	}
	if err := s.db.Create(&f).Error; err != nil {
		if database.IsDuplicateError(err) {
			return nil, &database.ConflictError{Field: "path"}
		}
		return nil, err
	}
	if err := s.writeFile(fh, rel); err != nil {
		s.db.Delete(&models.FileUpload{}, f.ID)
		return nil, err
	}
	return &f, nil
}

// Delete removes the row and then the file. A missing file on disk is not an
// error; the row is authoritative.
func (s *Service) Delete(id uint) error {
	f, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if f == nil {
		return gorm.ErrRecordNotFound
	}
	if err := s.db.Delete(&models.FileUpload{}, id).Error; err != nil {
		return err
	}
	_ = os.Remove(filepath.Join(s.root, filepath.FromSlash(f.Path)))
	return nil
}

// UpdateDescription edits the stored description only; the file itself is
// immutable.
func (s *Service) UpdateDescription(id uint, description string) (*models.FileUpload, error) {
	f, err := s.GetByID(id)
	if err != nil || f == nil {
		return f, err
	}
	if err := s.db.Model(f).Update("description", description).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) checkExtension(name string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return ErrBadExtension
	}
	allowed, err := s.settings.AllowedExtensions()
	if err != nil {
		return err
	}
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return ErrBadExtension
}

// relativePath builds the slash-separated path stored in the database and
// rejects traversal out of the upload root.
func (s *Service) relativePath(subdir, name string) (string, error) {
	subdir = strings.Trim(strings.ReplaceAll(subdir, "\\", "/"), "/")
	rel := name
	if subdir != "" {
		rel = subdir + "/" + name
	}
	clean := filepath.ToSlash(filepath.Clean(rel))
	if clean != rel || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", ErrBadPath
	}
	return clean, nil
}

func (s *Service) writeFile(fh *multipart.FileHeader, rel string) error {
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
