package page

import (
	"errors"
	"strings"

	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/pagination"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"github.com/kasumi-cms/core/internal/pkg/slugify"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// CreatePageDTO carries a new page. Slug is optional; when empty it is
// derived from the title. GhostedID (already decoded from its hashid by the
// handler) aliases this page to another.
type CreatePageDTO struct {
	Title           string `json:"title" binding:"required"`
	Mini            string `json:"mini"`
	Content         string `json:"content"`
	CustomHead      string `json:"custom_head"`
	BaseRoute       string `json:"base_route"`
	Slug            string `json:"slug"`
	IsRoot          bool   `json:"is_root"`
	IsPublished     bool   `json:"is_published"`
	CommentsEnabled bool   `json:"comments_enabled"`
	GhostedID       *uint  `json:"-"`
}

// UpdatePageDTO carries a page edit. Nil fields are left untouched, but the
// route is recomputed from base_route and slug on every update regardless.
type UpdatePageDTO struct {
	Title           *string `json:"title"`
	Mini            *string `json:"mini"`
	Content         *string `json:"content"`
	CustomHead      *string `json:"custom_head"`
	BaseRoute       *string `json:"base_route"`
	Slug            *string `json:"slug"`
	IsRoot          *bool   `json:"is_root"`
	IsPublished     *bool   `json:"is_published"`
	CommentsEnabled *bool   `json:"comments_enabled"`
	GhostedID       *uint   `json:"-"`
	ClearGhost      bool    `json:"-"`
}

// List returns one partition of the pages table: ghosts when ghosts is true,
// active pages otherwise. The predicate mirrors the serve-time ghost check.
func (s *Service) List(q pagination.Query, ghosts bool) ([]models.Page, response.Pagination, error) {
	tx := s.db.Model(&models.Page{}).Order("updated_at DESC")
	if ghosts {
		tx = tx.Where("ghosted_id IS NOT NULL")
	} else {
		tx = tx.Where("ghosted_id IS NULL")
	}
	var pages []models.Page
	pag, err := pagination.Paginate(tx, q, &pages)
	return pages, pag, err
}

func (s *Service) GetByID(id uint) (*models.Page, error) {
	var p models.Page
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetByRoute fetches a published page by its full route.
func (s *Service) GetByRoute(route string) (*models.Page, error) {
	var p models.Page
	err := s.db.Where("route = ? AND is_published = ?", route, true).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Create(dto *CreatePageDTO) (*models.Page, error) {
	p := models.Page{
		Title:           dto.Title,
		Mini:            dto.Mini,
		Content:         dto.Content,
		CustomHead:      dto.CustomHead,
		BaseRoute:       dto.BaseRoute,
		Slug:            dto.Slug,
		IsRoot:          dto.IsRoot,
		IsPublished:     dto.IsPublished,
		CommentsEnabled: dto.CommentsEnabled,
		GhostedID:       dto.GhostedID,
	}
	deriveFields(&p)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&p).Error
	})
	if err != nil {
		if database.IsDuplicateError(err) {
			return nil, &database.ConflictError{Field: "route"}
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Update(id uint, dto *UpdatePageDTO) (*models.Page, error) {
	p, err := s.GetByID(id)
	if err != nil || p == nil {
		return p, err
	}

	if dto.Title != nil {
		p.Title = *dto.Title
	}
	if dto.Mini != nil {
		p.Mini = *dto.Mini
	}
	if dto.Content != nil {
		p.Content = *dto.Content
	}
	if dto.CustomHead != nil {
		p.CustomHead = *dto.CustomHead
	}
	if dto.BaseRoute != nil {
		p.BaseRoute = *dto.BaseRoute
	}
	if dto.Slug != nil {
		p.Slug = *dto.Slug
	}
	if dto.IsRoot != nil {
		p.IsRoot = *dto.IsRoot
	}
	if dto.IsPublished != nil {
		p.IsPublished = *dto.IsPublished
	}
	if dto.CommentsEnabled != nil {
		p.CommentsEnabled = *dto.CommentsEnabled
	}
	if dto.ClearGhost {
		p.GhostedID = nil
	} else if dto.GhostedID != nil {
		p.GhostedID = dto.GhostedID
	}

	deriveFields(p)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Save(p).Error
	})
	if err != nil {
		if database.IsDuplicateError(err) {
			return nil, &database.ConflictError{Field: "route"}
		}
		return nil, err
	}
	return p, nil
}

// Delete removes the page row. Ghost records pointing at it are left in
// place; they resolve to 404 through the target-visibility guard.
func (s *Service) Delete(id uint) error {
	res := s.db.Delete(&models.Page{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// deriveFields recomputes slug and route. This runs on every insert and
// every update, not just when title or slug changed.
func deriveFields(p *models.Page) {
	if p.Slug == "" {
		p.Slug = slugify.Make(p.Title, slugify.MaxPageSlug)
	}
	if p.BaseRoute == "" {
		p.BaseRoute = "/"
	}
	if p.IsRoot {
		p.Route = "/"
		return
	}
	sep := "/"
	if strings.HasSuffix(p.BaseRoute, "/") {
		sep = ""
	}
	p.Route = p.BaseRoute + sep + p.Slug
}
