package post

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

// ErrForbidden is returned when ownership scoping denies an operation: a
// caller holding only the blogger role may touch only posts they author.
var ErrForbidden = errors.New("not an author of this post")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// CreatePostDTO carries a new post. Tags is the raw comma-separated list;
// AuthorIDs the decoded author set. The acting user is always added to the
// authors regardless of the submitted list.
type CreatePostDTO struct {
	Title           string `json:"title" binding:"required"`
	Content         string `json:"content"`
	Slug            string `json:"slug"`
	IsPublished     bool   `json:"is_published"`
	CommentsEnabled bool   `json:"comments_enabled"`
	Tags            string `json:"tags"`
	AuthorIDs       []uint `json:"-"`
	GhostedID       *uint  `json:"-"`
}

// UpdatePostDTO carries a post edit. Nil means "leave unchanged"; a non-nil
// Tags or AuthorIDs replaces the whole relation set.
type UpdatePostDTO struct {
	Title           *string `json:"title"`
	Content         *string `json:"content"`
	Slug            *string `json:"slug"`
	IsPublished     *bool   `json:"is_published"`
	CommentsEnabled *bool   `json:"comments_enabled"`
	Tags            *string `json:"tags"`
	AuthorIDs       []uint  `json:"-"`
	ReplaceAuthors  bool    `json:"-"`
	GhostedID       *uint   `json:"-"`
	ClearGhost      bool    `json:"-"`
}

// List returns one partition (active or ghost) of posts visible to actor.
// Administrators see everything; bloggers see only posts they author.
func (s *Service) List(actor *models.User, q pagination.Query, ghosts bool) ([]models.Post, response.Pagination, error) {
	tx := s.db.Model(&models.Post{}).
		Preload("Tags").Preload("Authors").
		Order("posts.updated_at DESC")
	if ghosts {
		tx = tx.Where("ghosted_id IS NOT NULL")
	} else {
		tx = tx.Where("ghosted_id IS NULL")
	}
	if scopedToOwn(actor) {
		tx = tx.Joins("JOIN user_posts ON user_posts.post_id = posts.id").
			Where("user_posts.user_id = ?", actor.ID)
	}

	var posts []models.Post
	pag, err := pagination.Paginate(tx, q, &posts)
	return posts, pag, err
}

func (s *Service) GetByID(id uint) (*models.Post, error) {
	var p models.Post
	err := s.db.Preload("Tags").Preload("Authors").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetBySlug fetches a published post by slug for the public surface.
func (s *Service) GetBySlug(slug string) (*models.Post, error) {
	var p models.Post
	err := s.db.Preload("Tags").Preload("Authors").
		Where("slug = ? AND is_published = ?", slug, true).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListPublished returns published, non-ghost posts for the public index,
// optionally filtered by tag name or author username.
func (s *Service) ListPublished(q pagination.Query, tag, author string) ([]models.Post, response.Pagination, error) {
	tx := s.db.Model(&models.Post{}).
		Preload("Tags").Preload("Authors").
		Where("is_published = ? AND ghosted_id IS NULL", true).
		// The filter joins pull in tables with their own updated_at
		// column, so the sort key must be qualified.
		Order("posts.updated_at DESC")
	if tag != "" {
		tx = tx.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", tag)
	}
	if author != "" {
		tx = tx.Joins("JOIN user_posts ON user_posts.post_id = posts.id").
			Joins("JOIN users ON users.id = user_posts.user_id").
			Where("users.username = ?", author)
	}

	var posts []models.Post
	pag, err := pagination.Paginate(tx, q, &posts)
	return posts, pag, err
}

// Latest returns the newest published non-ghost posts for the feed.
func (s *Service) Latest(limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.Preload("Authors").
		Where("is_published = ? AND ghosted_id IS NULL", true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// Create persists a new post authored (at least) by actor.
func (s *Service) Create(actor *models.User, dto *CreatePostDTO) (*models.Post, error) {
	p := models.Post{
		Title:           dto.Title,
		Content:         dto.Content,
		Slug:            dto.Slug,
		IsPublished:     dto.IsPublished,
		CommentsEnabled: dto.CommentsEnabled,
		GhostedID:       dto.GhostedID,
	}
	if p.Slug == "" {
		p.Slug = slugify.Make(p.Title, slugify.MaxPostSlug)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		authors, err := s.loadAuthors(tx, withActor(dto.AuthorIDs, actor.ID))
		if err != nil {
			return err
		}
		if err := tx.Model(&p).Association("Authors").Replace(authors); err != nil {
			return err
		}

		tags, err := s.resolveTags(tx, dto.Tags)
		if err != nil {
			return err
		}
		return tx.Model(&p).Association("Tags").Replace(tags)
	})
	if err != nil {
		if database.IsDuplicateError(err) {
			return nil, &database.ConflictError{Field: "slug"}
		}
		return nil, err
	}
	return s.GetByID(p.ID)
}

// Update edits a post on behalf of actor, enforcing ownership scoping. When
// the actor edits a post they do not yet author, they are added to the
// author set (administrators and editors excepted from auto-add would lose
// information, so the original behavior is kept: the acting user is added).
func (s *Service) Update(actor *models.User, id uint, dto *UpdatePostDTO) (*models.Post, error) {
	p, err := s.GetByID(id)
	if err != nil || p == nil {
		return p, err
	}
	if scopedToOwn(actor) && !p.HasAuthor(actor.ID) {
		return nil, ErrForbidden
	}

	if dto.Title != nil {
		p.Title = *dto.Title
	}
	if dto.Content != nil {
		p.Content = *dto.Content
	}
	if dto.Slug != nil {
		p.Slug = *dto.Slug
	}
	if p.Slug == "" {
		p.Slug = slugify.Make(p.Title, slugify.MaxPostSlug)
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

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Authors").Save(p).Error; err != nil {
			return err
		}

		if dto.ReplaceAuthors {
			authors, err := s.loadAuthors(tx, withActor(dto.AuthorIDs, actor.ID))
			if err != nil {
				return err
			}
			if err := tx.Model(p).Association("Authors").Replace(authors); err != nil {
				return err
			}
		} else if !p.HasAuthor(actor.ID) {
			if err := tx.Model(p).Association("Authors").Append(&models.User{Base: models.Base{ID: actor.ID}}); err != nil {
				return err
			}
		}

		if dto.Tags != nil {
			tags, err := s.resolveTags(tx, *dto.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(p).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if database.IsDuplicateError(err) {
			return nil, &database.ConflictError{Field: "slug"}
		}
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes a post and its own relation rows. Ghosts pointing at it
// stay and 404 at serve time.
func (s *Service) Delete(actor *models.User, id uint) error {
	p, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if p == nil {
		return gorm.ErrRecordNotFound
	}
	if scopedToOwn(actor) && !p.HasAuthor(actor.ID) {
		return ErrForbidden
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(p).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Model(p).Association("Authors").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}

// scopedToOwn reports whether actor is limited to posts they author.
// Administrators bypass ownership scoping entirely.
func scopedToOwn(actor *models.User) bool {
	return !actor.HasRole(models.RoleAdministrator) && actor.HasRole(models.RoleBlogger)
}

// resolveTags replaces-all semantics: parse the comma-separated list and
// get-or-create each name case-sensitively. Orphaned tags are never cleaned
// up.
func (s *Service) resolveTags(tx *gorm.DB, raw string) ([]models.Tag, error) {
	names := splitTagList(raw)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var t models.Tag
		err := tx.Where("name = ?", name).First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t = models.Tag{Name: name}
			if err := tx.Create(&t).Error; err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (s *Service) loadAuthors(tx *gorm.DB, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := tx.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// withActor guarantees the acting user is in the author set.
func withActor(ids []uint, actorID uint) []uint {
	for _, id := range ids {
		if id == actorID {
			return ids
		}
	}
	return append(ids, actorID)
}

func splitTagList(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]bool, len(parts))
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
