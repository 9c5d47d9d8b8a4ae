package app

import (
	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/middleware"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/modules/auth"
	"github.com/kasumi-cms/core/internal/modules/feed"
	"github.com/kasumi-cms/core/internal/modules/page"
	"github.com/kasumi-cms/core/internal/modules/post"
	"github.com/kasumi-cms/core/internal/modules/reader"
	"github.com/kasumi-cms/core/internal/modules/settings"
	"github.com/kasumi-cms/core/internal/modules/upload"
	"github.com/kasumi-cms/core/internal/modules/user"
	"github.com/kasumi-cms/core/internal/pkg/hashid"
	"github.com/kasumi-cms/core/internal/pkg/mail"
	"github.com/kasumi-cms/core/internal/pkg/response"
)

func (a *App) registerRoutes(codec *hashid.Codec, dispatcher mail.Dispatcher) {
	r := a.router
	db := a.db
	log := a.logger
	authMW := middleware.Auth(db)

	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Shared services
	settingsSvc := settings.NewService(db)
	pageSvc := page.NewService(db)
	postSvc := post.NewService(db)
	userSvc := user.NewService(db, a.cfg.BcryptCost)
	authSvc := auth.NewService(db, dispatcher, a.cfg.BcryptCost, a.cfg.ResetTokenTTL())
	uploadSvc := upload.NewService(db, settingsSvc, a.cfg.UploadRoot)

	// Public surface: blog routes, dynamic pages (as the NoRoute fallback),
	// the RSS feed and uploaded files.
	reader.NewHandler(pageSvc, postSvc, settingsSvc, log).RegisterRoutes(r)
	feed.NewHandler(postSvc, settingsSvc, log).RegisterRoutes(r)
	r.Static("/files", a.cfg.UploadRoot)

	api := r.Group("/api/v1")

	// Auth: login and password recovery are public, logout and
	// reauthentication need a live session.
	authPublic := api.Group("/auth")
	authAuthed := api.Group("/auth", authMW)
	auth.NewHandler(authSvc, codec, log).RegisterRoutes(authPublic, authAuthed)

	// Self service. The password change inside is additionally gated on a
	// fresh login.
	userHandler := user.NewHandler(userSvc, codec, log)
	authed := api.Group("", authMW)
	userHandler.RegisterProfileRoutes(authed, middleware.RequireFresh(db, a.cfg.FreshWindow()))

	// Admin surface. Each area carries its own role gate; administrators
	// pass every gate.
	admin := api.Group("/admin", authMW)

	editors := admin.Group("", middleware.RequireRoles(models.RoleAdministrator, models.RoleEditor))
	page.NewHandler(pageSvc, codec, log).RegisterRoutes(editors)

	bloggers := admin.Group("", middleware.RequireRoles(models.RoleAdministrator, models.RoleBlogger))
	post.NewHandler(postSvc, codec, log).RegisterRoutes(bloggers)

	uploaders := admin.Group("", middleware.RequireRoles(models.RoleAdministrator, models.RoleUploader))
	upload.NewHandler(uploadSvc, codec, log).RegisterRoutes(uploaders)

	admins := admin.Group("", middleware.RequireRoles(models.RoleAdministrator))
	userHandler.RegisterRoutes(admins)
	settings.NewHandler(settingsSvc, log).RegisterRoutes(admins)
}
