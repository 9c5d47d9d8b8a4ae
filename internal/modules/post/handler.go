package post

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/middleware"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/hashid"
	"github.com/kasumi-cms/core/internal/pkg/pagination"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type postResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Slug            string    `json:"slug"`
	IsPublished     bool      `json:"is_published"`
	CommentsEnabled bool      `json:"comments_enabled"`
	Tags            string    `json:"tags"`
	Authors         []string  `json:"authors"`
	Ghosted         string    `json:"ghosted,omitempty"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

type createPostRequest struct {
	CreatePostDTO
	Ghosted string   `json:"ghosted"`
	Authors []string `json:"authors"`
}

type updatePostRequest struct {
	UpdatePostDTO
	Ghosted *string  `json:"ghosted"`
	Authors []string `json:"authors"`
}

type Handler struct {
	svc   *Service
	codec *hashid.Codec
	log   *zap.Logger
}

func NewHandler(svc *Service, codec *hashid.Codec, log *zap.Logger) *Handler {
	return &Handler{svc: svc, codec: codec, log: log}
}

// RegisterRoutes mounts the admin post endpoints on an already role-gated
// group (administrator, editor or blogger).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/posts")
	g.GET("", h.list)
	g.GET("/ghosts", h.listGhosts)
	g.GET("/:hashid", h.get)
	g.POST("", h.create)
	g.PUT("/:hashid", h.update)
	g.PATCH("/:hashid", h.update)
	g.DELETE("/:hashid", h.delete)
}

func (h *Handler) toResponse(p *models.Post) postResponse {
	authors := make([]string, len(p.Authors))
	for i := range p.Authors {
		authors[i] = p.Authors[i].Username
	}
	r := postResponse{
		ID:              h.codec.Encode(p.ID),
		Title:           p.Title,
		Content:         p.Content,
		Slug:            p.Slug,
		IsPublished:     p.IsPublished,
		CommentsEnabled: p.CommentsEnabled,
		Tags:            strings.Join(p.TagNames(), ", "),
		Authors:         authors,
		Created:         p.CreatedAt,
		Modified:        p.UpdatedAt,
	}
	if p.GhostedID != nil {
		r.Ghosted = h.codec.Encode(*p.GhostedID)
	}
	return r
}

func (h *Handler) list(c *gin.Context)       { h.listPartition(c, false) }
func (h *Handler) listGhosts(c *gin.Context) { h.listPartition(c, true) }

func (h *Handler) listPartition(c *gin.Context, ghosts bool) {
	actor := middleware.CurrentUser(c)
	q := pagination.FromContext(c)
	posts, pag, err := h.svc.List(actor, q, ghosts)
	if err != nil {
		h.log.Error("list posts failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	items := make([]postResponse, len(posts))
	for i := range posts {
		items[i] = h.toResponse(&posts[i])
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	p, err := h.svc.GetByID(id)
	if err != nil {
		h.log.Error("get post failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	if scopedToOwn(actor) && !p.HasAuthor(actor.ID) {
		response.Forbidden(c)
		return
	}
	response.OK(c, h.toResponse(p))
}

// decodeAuthors maps hashid tokens to user IDs, rejecting unknown tokens.
func (h *Handler) decodeAuthors(tokens []string) ([]uint, bool) {
	ids := make([]uint, 0, len(tokens))
	for _, t := range tokens {
		id, ok := h.codec.Decode(t)
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (h *Handler) create(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Ghosted != "" {
		target, ok := h.codec.Decode(req.Ghosted)
		if !ok {
			response.BadRequest(c, "invalid ghost target")
			return
		}
		req.GhostedID = &target
	}
	ids, ok := h.decodeAuthors(req.Authors)
	if !ok {
		response.BadRequest(c, "invalid author")
		return
	}
	req.AuthorIDs = ids

	p, err := h.svc.Create(actor, &req.CreatePostDTO)
	if err != nil {
		if ce := database.AsConflict(err); ce != nil {
			response.FieldConflict(c, ce.Field)
			return
		}
		h.log.Error("create post failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.Created(c, h.toResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Ghosted != nil {
		if *req.Ghosted == "" {
			req.ClearGhost = true
		} else {
			target, ok := h.codec.Decode(*req.Ghosted)
			if !ok {
				response.BadRequest(c, "invalid ghost target")
				return
			}
			req.GhostedID = &target
		}
	}
	if req.Authors != nil {
		ids, ok := h.decodeAuthors(req.Authors)
		if !ok {
			response.BadRequest(c, "invalid author")
			return
		}
		req.AuthorIDs = ids
		req.ReplaceAuthors = true
	}

	p, err := h.svc.Update(actor, id, &req.UpdatePostDTO)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.Forbidden(c)
			return
		}
		if ce := database.AsConflict(err); ce != nil {
			response.FieldConflict(c, ce.Field)
			return
		}
		h.log.Error("update post failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(p))
}

func (h *Handler) delete(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	if err := h.svc.Delete(actor, id); err != nil {
		if errors.Is(err, ErrForbidden) {
			response.Forbidden(c)
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		h.log.Error("delete post failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.NoContent(c)
}
