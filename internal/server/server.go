// Package server contains the HTTP handlers for the PromptGuy API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	_ "promptguy/docs" // swagger docs
	"promptguy/internal/catalog"
	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/featureflags"
	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/notifications"
	"promptguy/internal/repository"
	"promptguy/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "promptguy-api"

// The collector registers on the default registry, which rejects a second
// registration, so every Server in the process shares one.
var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

func sharedMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = middleware.InitMetrics(serviceName)
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	readDB          *gorm.DB
	redis           *redis.Client
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	verifier        *middleware.TokenVerifier
	webhookVerifier *service.WebhookVerifier
	notifier        *notifications.Notifier
	featureFlags    *featureflags.Manager
	catalog         *catalog.Catalog

	postService         *service.PostService
	feedService         *service.FeedService
	interactionService  *service.InteractionService
	viewService         *service.ViewService
	userService         *service.UserService
	identityService     *service.IdentityService
	notificationService *service.NotificationService
	counterService      *service.CounterService
}

// NewServerWithDeps creates a Server over an already-connected database, an
// optional read replica and an optional Redis client. The bootstrap layer (or
// a test) owns connecting and migrating; the server only wires repositories
// and services on top.
func NewServerWithDeps(cfg *config.Config, db, readDB *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("server requires a database connection")
	}

	replica := repository.WithReadReplica(readDB)
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db, replica)
	interactionRepo := repository.NewInteractionRepository(db)
	viewRepo := repository.NewViewRepository(db, replica)
	notificationRepo := repository.NewNotificationRepository(db)
	counterRepo := repository.NewCounterRepository(db)

	cat := catalog.Default()
	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		readDB:         readDB,
		redis:          redisClient,
		promMiddleware: sharedMetrics(),
		verifier:       middleware.NewTokenVerifier(cfg.JWTSecret, cfg.AuthIssuer),
		notifier:       notifier,
		featureFlags:   flags,
		catalog:        cat,

		postService:         service.NewPostService(postRepo, interactionRepo),
		feedService:         service.NewFeedService(postRepo, interactionRepo, cat, cfg.FeedDefaultLimit, cfg.FeedMaxLimit),
		interactionService:  service.NewInteractionService(interactionRepo, postRepo, userRepo, notificationRepo, notifier, flags),
		viewService:         service.NewViewService(viewRepo, userRepo),
		userService:         service.NewUserService(userRepo),
		identityService:     service.NewIdentityService(userRepo),
		notificationService: service.NewNotificationService(notificationRepo),
		counterService:      service.NewCounterService(counterRepo),
	}

	if cfg.WebhookSecret != "" {
		verifier, err := service.NewWebhookVerifier(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		s.webhookVerifier = verifier
	}

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	// Context middleware runs after tracing so the trace id reaches the logger.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			middleware.RateLimitRejections.WithLabelValues("global").Inc()
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				&models.AppError{Code: models.CodeRateLimited, Message: "Too many requests, please try again later."})
		},
	}))
}

// Per-route limits. Interaction toggles share one budget.
var (
	createPostLimit     = middleware.RateLimitRule{Name: "create_post", Limit: 10, Window: 5 * time.Minute}
	interactionLimit    = middleware.RateLimitRule{Name: "interaction", Limit: 60, Window: time.Minute}
	followLimit         = middleware.RateLimitRule{Name: "follow", Limit: 30, Window: time.Minute}
	usernameLookupLimit = middleware.RateLimitRule{Name: "username_availability", Limit: 30, Window: time.Minute}
)

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "PromptGuy API Metrics",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/catalog", s.GetCatalog)
	api.Get("/feature-flags", s.OptionalAuth(), s.GetFeatureFlags)
	api.Post("/webhooks/identity", s.HandleIdentityWebhook)

	// Posts
	posts := api.Group("/posts")
	posts.Get("/", s.OptionalAuth(), s.GetFeed)
	posts.Post("/", s.AuthRequired(), middleware.RateLimit(s.redis, createPostLimit), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/view", s.OptionalAuth(), s.RecordView)
	posts.Get("/:id", s.OptionalAuth(), s.GetPost)
	posts.Put("/:id", s.AuthRequired(), s.UpdatePost)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)

	api.Get("/users/:id/posts", s.OptionalAuth(), s.GetUserPosts)

	// Interactions
	interactions := api.Group("/interactions", s.AuthRequired())
	interactions.Post("/like", middleware.RateLimit(s.redis, interactionLimit), s.ToggleLike)
	interactions.Post("/bookmark", middleware.RateLimit(s.redis, interactionLimit), s.ToggleBookmark)
	interactions.Post("/follow", middleware.RateLimit(s.redis, followLimit), s.ToggleFollow)
	interactions.Post("/share", s.SharePost)

	// Current user
	user := api.Group("/user")
	user.Get("/username/check", s.OptionalAuth(), s.CheckUsername)
	user.Get("/username/availability", middleware.RateLimit(s.redis, usernameLookupLimit), s.UsernameAvailability)
	user.Post("/username", s.AuthRequired(), s.ClaimUsername)
	user.Patch("/username", s.AuthRequired(), s.ChangeUsername)
	user.Get("/profile", s.AuthRequired(), s.GetProfile)
	user.Get("/bookmarks", s.AuthRequired(), s.GetBookmarks)

	// Notifications
	notes := api.Group("/notifications", s.AuthRequired())
	notes.Get("/", s.GetNotifications)
	notes.Get("/unread-count", s.GetUnreadCount)
	notes.Get("/stream", s.StreamNotifications)
	notes.Post("/read", s.MarkNotificationsRead)

	// Admin routes
	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Post("/reconcile", s.ReconcileCounters)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only backs caching, rate limits and live notifications, so a
	// server started without it is still ready.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": serviceName,
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds the Fiber app with the middleware stack and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "PromptGuy API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, then closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.readDB); err != nil {
		middleware.Logger.Error("error closing read replica", slog.String("error", err.Error()))
	}
	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
