package upload

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

type uploadResponse struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	MIME        string    `json:"mime"`
	Created     time.Time `json:"created"`
}

type Handler struct {
	svc   *Service
	codec *hashid.Codec
	log   *zap.Logger
}

func NewHandler(svc *Service, codec *hashid.Codec, log *zap.Logger) *Handler {
	return &Handler{svc: svc, codec: codec, log: log}
}

// RegisterRoutes mounts the admin upload endpoints on a role-gated group
// (administrator or uploader).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/uploads")
	g.GET("", h.list)
	g.GET("/:hashid", h.get)
	g.POST("", h.create)
	g.PUT("/:hashid", h.update)
	g.PATCH("/:hashid", h.update)
	g.DELETE("/:hashid", h.delete)
}

func (h *Handler) toResponse(f *models.FileUpload) uploadResponse {
	return uploadResponse{
		ID:          h.codec.Encode(f.ID),
		Path:        f.Path,
		URL:         "/files/" + f.Path,
		Description: f.Description,
		MIME:        f.MIME,
		Created:     f.CreatedAt,
	}
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	files, pag, err := h.svc.List(q)
	if err != nil {
		h.log.Error("list uploads failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	items := make([]uploadResponse, len(files))
	for i := range files {
		items[i] = h.toResponse(&files[i])
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	f, err := h.svc.GetByID(id)
	if err != nil {
		h.log.Error("get upload failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if f == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(f))
}

func (h *Handler) create(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	subdir := c.PostForm("subdir")
	description := c.PostForm("description")

	f, err := h.svc.Store(fh, subdir, description)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadExtension):
			response.UnprocessableEntity(c, ErrBadExtension.Error())
		case errors.Is(err, ErrBadPath):
			response.BadRequest(c, ErrBadPath.Error())
		default:
			if ce := database.AsConflict(err); ce != nil {
				response.FieldConflict(c, ce.Field)
				return
			}
			h.log.Error("store upload failed", zap.Error(err))
			response.InternalError(c)
		}
		return
	}
	response.Created(c, h.toResponse(f))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	f, err := h.svc.UpdateDescription(id, body.Description)
	if err != nil {
		h.log.Error("update upload failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if f == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(f))
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
		h.log.Error("delete upload failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.NoContent(c)
}
