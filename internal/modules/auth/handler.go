package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/middleware"
	"github.com/kasumi-cms/core/internal/pkg/hashid"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Next     string `json:"next"`
}

type reauthRequest struct {
	Password string `json:"password" binding:"required"`
	Next     string `json:"next"`
}

type forgotRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type Handler struct {
	svc   *Service
	codec *hashid.Codec
	log   *zap.Logger
}

func NewHandler(svc *Service, codec *hashid.Codec, log *zap.Logger) *Handler {
	return &Handler{svc: svc, codec: codec, log: log}
}

// RegisterRoutes mounts the auth endpoints. Login, forgot and reset are
// public; logout and reauthenticate require an authenticated caller, which
// the route wiring enforces with the auth middleware.
func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/login", h.login)
	public.POST("/forgot-password", h.forgotPassword)
	public.POST("/reset-password", h.resetPassword)
	authed.POST("/logout", h.logout)
	authed.POST("/reauthenticate", h.reauthenticate)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ip, ua := c.ClientIP(), c.Request.UserAgent()
	token, u, err := h.svc.Login(req.Username, req.Password, ip, ua)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			response.UnprocessableEntity(c, "invalid username or password")
			return
		}
		h.log.Error("login failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	h.svc.NotifyLogin(c.Request.Context(), u, ip, ua)

	next := req.Next
	if !middleware.SafeRedirect(next) {
		next = "/"
	}
	response.OK(c, gin.H{
		"token": token,
		"next":  next,
		"user": gin.H{
			"id":       h.codec.Encode(u.ID),
			"username": u.Username,
			"roles":    u.RoleNames(),
		},
	})
}

func (h *Handler) logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.svc.Logout(user.ID, middleware.CurrentSessionID(c)); err != nil {
		h.log.Error("logout failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.NoContent(c)
}

func (h *Handler) reauthenticate(c *gin.Context) {
	var req reauthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user := middleware.CurrentUser(c)
	err := h.svc.Reauthenticate(user, middleware.CurrentSessionID(c), req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			response.UnprocessableEntity(c, "invalid password")
			return
		}
		h.log.Error("reauthenticate failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	next := req.Next
	if !middleware.SafeRedirect(next) {
		next = "/"
	}
	response.OK(c, gin.H{"next": next})
}

// forgotPassword always answers the same way so the endpoint cannot be used
// to probe which addresses have accounts.
func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.RequestReset(c.Request.Context(), req.Email); err != nil {
		h.log.Error("password reset request failed", zap.Error(err))
	}
	response.OK(c, gin.H{
		"message": "if that address has an account, a reset token has been sent",
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.ResetPassword(req.Token, req.Password); err != nil {
		if errors.Is(err, ErrBadToken) {
			response.UnprocessableEntity(c, ErrBadToken.Error())
			return
		}
		h.log.Error("password reset failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"message": "password updated, you can now log in"})
}
