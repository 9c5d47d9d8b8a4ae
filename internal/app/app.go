package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/config"
	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/middleware"
	"github.com/kasumi-cms/core/internal/pkg/hashid"
	jwtpkg "github.com/kasumi-cms/core/internal/pkg/jwt"
	"github.com/kasumi-cms/core/internal/pkg/mail"
	pkgredis "github.com/kasumi-cms/core/internal/pkg/redis"
	"github.com/kasumi-cms/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
}

// New initializes the application: config → DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	codec, err := hashid.New(cfg.HashidSalt, cfg.HashidMinLen)
	if err != nil {
		return nil, fmt.Errorf("hashid: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())

	sender := mail.New(cfg.Mail)
	var dispatcher mail.Dispatcher
	if cfg.AsyncMail {
		queue := taskqueue.New(rc, logger)
		dispatcher = mail.NewQueueDispatcher(queue, sender, logger)
		go queue.Run(ctx)
	} else {
		dispatcher = mail.NewSyncDispatcher(sender, logger)
	}

	go runMaintenance(ctx, db, logger)

	app := &App{cfg: cfg, router: router, db: db, rc: rc, logger: logger, cancel: cancel}
	app.registerRoutes(codec, dispatcher)

	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(origin string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines and the Redis pool.
func (a *App) Shutdown() {
	a.cancel()
	_ = a.rc.Close()
}
