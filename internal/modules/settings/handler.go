package settings

import (
	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the settings endpoints on an administrator-gated
// group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/settings")
	g.GET("", h.list)
	g.PUT("", h.update)
	g.PATCH("", h.update)
}

func (h *Handler) list(c *gin.Context) {
	opts, err := h.svc.All()
	if err != nil {
		h.log.Error("list settings failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, opts)
}

func (h *Handler) update(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(body) == 0 {
		response.BadRequest(c, "no settings provided")
		return
	}
	if err := h.svc.SetAll(body); err != nil {
		h.log.Error("update settings failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	opts, err := h.svc.All()
	if err != nil {
		h.log.Error("list settings failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, opts)
}
