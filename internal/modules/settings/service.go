package settings

import (
	"errors"
	"strings"
	"sync"

	"github.com/kasumi-cms/core/internal/models"
	"gorm.io/gorm"
)

// Well-known option names. Unknown names are stored as-is so deployments can
// keep template-specific values without a schema change.
const (
	OptSiteName          = "site_name"
	OptNavigation        = "navigation"
	OptFooter            = "footer"
	OptAllowedExtensions = "allowed_extensions"
	OptCommentsSiteID    = "comments_site_id"
	OptFeedTitle         = "feed_title"
	OptFeedDescription   = "feed_description"
	OptSiteURL           = "site_url"
)

var defaults = map[string]string{
	OptSiteName:          "Kasumi",
	OptNavigation:        "[]",
	OptFooter:            "",
	OptAllowedExtensions: "png,jpg,jpeg,gif,webp,svg,pdf,txt,md,zip",
	OptCommentsSiteID:    "",
	OptFeedTitle:         "Kasumi",
	OptFeedDescription:   "Latest posts",
	OptSiteURL:           "http://localhost:4000",
}

// Service reads and writes site options. Values are cached in memory; the
// cache is primed on first access and updated write-through, so steady-state
// reads never touch the database.
type Service struct {
	db *gorm.DB

	mu     sync.RWMutex
	cache  map[string]string
	primed bool
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, cache: make(map[string]string)}
}

func (s *Service) prime() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primed {
		return nil
	}
	var opts []models.Option
	if err := s.db.Find(&opts).Error; err != nil {
		return err
	}
	for _, o := range opts {
		s.cache[o.Name] = o.Value
	}
	s.primed = true
	return nil
}

// Get returns the stored value for name, or its default when unset.
func (s *Service) Get(name string) (string, error) {
	if err := s.prime(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cache[name]; ok {
		return v, nil
	}
	return defaults[name], nil
}

// All returns every option merged over the defaults.
func (s *Service) All() (map[string]string, error) {
	if err := s.prime(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(defaults)+len(s.cache))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range s.cache {
		out[k] = v
	}
	return out, nil
}

// Set upserts one option and refreshes the cache entry.
func (s *Service) Set(name, value string) error {
	if name == "" {
		return errors.New("option name is required")
	}
	if err := s.prime(); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var o models.Option
		err := tx.Where("name = ?", name).First(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.Option{Name: name, Value: value}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&o).Update("value", value).Error
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()
	return nil
}

// SetAll applies a batch of option writes.
func (s *Service) SetAll(values map[string]string) error {
	for name, value := range values {
		if err := s.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// AllowedExtensions returns the upload extension allow-list, lowercased and
// without dots.
func (s *Service) AllowedExtensions() ([]string, error) {
	raw, err := s.Get(OptAllowedExtensions)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts, nil
}
