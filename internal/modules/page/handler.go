package page

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/hashid"
	"github.com/kasumi-cms/core/internal/pkg/pagination"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pageResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Mini            string    `json:"mini"`
	Content         string    `json:"content"`
	CustomHead      string    `json:"custom_head"`
	BaseRoute       string    `json:"base_route"`
	Slug            string    `json:"slug"`
	Route           string    `json:"route"`
	IsRoot          bool      `json:"is_root"`
	IsPublished     bool      `json:"is_published"`
	CommentsEnabled bool      `json:"comments_enabled"`
	Ghosted         string    `json:"ghosted,omitempty"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

type createPageRequest struct {
	CreatePageDTO
	Ghosted string `json:"ghosted"`
}

type updatePageRequest struct {
	UpdatePageDTO
	Ghosted *string `json:"ghosted"`
}

type Handler struct {
	svc   *Service
	codec *hashid.Codec
	log   *zap.Logger
}

func NewHandler(svc *Service, codec *hashid.Codec, log *zap.Logger) *Handler {
	return &Handler{svc: svc, codec: codec, log: log}
}

// RegisterRoutes mounts the admin page endpoints on an already role-gated
// group (administrator or editor).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/pages")
	g.GET("", h.list)
	g.GET("/ghosts", h.listGhosts)
	g.GET("/:hashid", h.get)
	g.POST("", h.create)
	g.PUT("/:hashid", h.update)
	g.PATCH("/:hashid", h.update)
	g.DELETE("/:hashid", h.delete)
}

func (h *Handler) toResponse(p *models.Page) pageResponse {
	r := pageResponse{
		ID:              h.codec.Encode(p.ID),
		Title:           p.Title,
		Mini:            p.Mini,
		Content:         p.Content,
		CustomHead:      p.CustomHead,
		BaseRoute:       p.BaseRoute,
		Slug:            p.Slug,
		Route:           p.Route,
		IsRoot:          p.IsRoot,
		IsPublished:     p.IsPublished,
		CommentsEnabled: p.CommentsEnabled,
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
	q := pagination.FromContext(c)
	pages, pag, err := h.svc.List(q, ghosts)
	if err != nil {
		h.log.Error("list pages failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	items := make([]pageResponse, len(pages))
	for i := range pages {
		items[i] = h.toResponse(&pages[i])
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	p, err := h.svc.GetByID(id)
	if err != nil {
		h.log.Error("get page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(p))
}

func (h *Handler) create(c *gin.Context) {
	var req createPageRequest
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

	p, err := h.svc.Create(&req.CreatePageDTO)
	if err != nil {
		if ce := database.AsConflict(err); ce != nil {
			response.FieldConflict(c, ce.Field)
			return
		}
		h.log.Error("create page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.Created(c, h.toResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}

	var req updatePageRequest
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

	p, err := h.svc.Update(id, &req.UpdatePageDTO)
	if err != nil {
		if ce := database.AsConflict(err); ce != nil {
			response.FieldConflict(c, ce.Field)
			return
		}
		h.log.Error("update page failed", zap.Error(err))
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
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		h.log.Error("delete page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.NoContent(c)
}
