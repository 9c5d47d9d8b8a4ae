package user

import (
	"errors"
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

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsActive    bool      `json:"is_active"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PersonalBio string    `json:"personal_bio"`
	NotifyLogin bool      `json:"notify_login"`
	Roles       []string  `json:"roles"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

type changePasswordRequest struct {
	Current string `json:"current" binding:"required"`
	Next    string `json:"next" binding:"required,min=8"`
}

type Handler struct {
	svc   *Service
	codec *hashid.Codec
	log   *zap.Logger
}

func NewHandler(svc *Service, codec *hashid.Codec, log *zap.Logger) *Handler {
	return &Handler{svc: svc, codec: codec, log: log}
}

// RegisterRoutes mounts the admin user endpoints on an administrator-gated
// group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/users")
	g.GET("", h.list)
	g.GET("/:hashid", h.get)
	g.POST("", h.create)
	g.PUT("/:hashid", h.update)
	g.PATCH("/:hashid", h.update)
	g.DELETE("/:hashid", h.delete)
	g.PUT("/:hashid/roles", h.setRoles)
	rg.GET("/roles", h.listRoles)
}

// RegisterProfileRoutes mounts the self-service endpoints. The password
// change route must additionally be wrapped in a freshness gate by the
// caller.
func (h *Handler) RegisterProfileRoutes(rg *gin.RouterGroup, fresh gin.HandlerFunc) {
	g := rg.Group("/profile")
	g.GET("", h.profile)
	g.PUT("", h.updateProfile)
	g.PATCH("", h.updateProfile)
	g.PUT("/password", fresh, h.changePassword)
}

func (h *Handler) toResponse(u *models.User) userResponse {
	roles := u.RoleNames()
	if roles == nil {
		roles = []string{}
	}
	return userResponse{
		ID:          h.codec.Encode(u.ID),
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PersonalBio: u.PersonalBio,
		NotifyLogin: u.NotifyLogin,
		Roles:       roles,
		Created:     u.CreatedAt,
		Modified:    u.UpdatedAt,
	}
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	users, pag, err := h.svc.List(q)
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	items := make([]userResponse, len(users))
	for i := range users {
		items[i] = h.toResponse(&users[i])
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	u, err := h.svc.GetByID(id)
	if err != nil {
		h.log.Error("get user failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if u == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(u))
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Create(&dto)
	if err != nil {
		h.fail(c, err, "create user failed")
		return
	}
	response.Created(c, h.toResponse(u))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	var dto UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Update(id, &dto)
	if err != nil {
		h.fail(c, err, "update user failed")
		return
	}
	if u == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(u))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	actor := middleware.CurrentUser(c)
	if actor != nil && actor.ID == id {
		response.BadRequest(c, "cannot delete your own account")
		return
	}
	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		h.log.Error("delete user failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.NoContent(c)
}

func (h *Handler) setRoles(c *gin.Context) {
	id, ok := h.codec.Decode(c.Param("hashid"))
	if !ok {
		response.NotFound(c)
		return
	}
	var body struct {
		Roles []string `json:"roles"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.SetRoles(id, body.Roles)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) {
			response.UnprocessableEntity(c, "unknown role")
			return
		}
		h.log.Error("set roles failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if u == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, h.toResponse(u))
}

func (h *Handler) listRoles(c *gin.Context) {
	response.OK(c, models.RoleNames)
}

func (h *Handler) profile(c *gin.Context) {
	response.OK(c, h.toResponse(middleware.CurrentUser(c)))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var dto ProfileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.UpdateProfile(middleware.CurrentUser(c).ID, &dto)
	if err != nil {
		h.log.Error("update profile failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, h.toResponse(u))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.svc.ChangePassword(middleware.CurrentUser(c).ID, req.Current, req.Next)
	if err != nil {
		if errors.Is(err, ErrBadPassword) {
			response.UnprocessableEntity(c, ErrBadPassword.Error())
			return
		}
		h.log.Error("change password failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.NoContent(c)
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if ce := database.AsConflict(err); ce != nil {
		response.FieldConflict(c, ce.Field)
		return
	}
	if errors.Is(err, ErrUnknownRole) {
		response.UnprocessableEntity(c, "unknown role")
		return
	}
	h.log.Error(msg, zap.Error(err))
	response.InternalError(c)
}
