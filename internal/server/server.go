// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "nexify/docs" // swagger docs
	"nexify/internal/cache"
	"nexify/internal/config"
	"nexify/internal/database"
	"nexify/internal/featureflags"
	"nexify/internal/jobs"
	"nexify/internal/mailer"
	"nexify/internal/middleware"
	"nexify/internal/models"
	"nexify/internal/notifications"
	"nexify/internal/repository"
	"nexify/internal/service"
	"nexify/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators that talk to the outside world. Zero values
// fall back to local-disk storage and a logging mailer.
type Deps struct {
	Storage storage.FileStorage
	Mailer  mailer.Mailer
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	validate       *validator.Validate
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	followRepo  repository.FollowRepository
	recRepo     repository.RecommendationRepository
	fileRepo    repository.FileRepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	store        storage.FileStorage
	mailer       mailer.Mailer

	userService       *service.UserService
	postService       *service.PostService
	commentService    *service.CommentService
	followService     *service.FollowService
	fileService       *service.FileService
	moderationService *service.ModerationService

	recommendationJob *jobs.RecommendationJob
	reconciler        *jobs.CounterReconciler
}

// NewServer connects to the database and Redis and builds a server with
// collaborators taken from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(context.Background(), cfg.RedisURL)

	store, err := storage.FromConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	return NewServerWithDeps(cfg, db, rdb, Deps{Storage: store, Mailer: mailer.FromConfig(cfg)})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Deps) (*Server, error) {
	if deps.Storage == nil {
		local, err := storage.NewLocalStorage(cfg.StorageLocalDir, cfg.PublicBaseURL+"/media")
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		deps.Storage = local
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.LogMailer{}
	}

	flags, err := featureflags.Parse(cfg.FeatureFlags)
	if err != nil {
		middleware.Logger.Warn("ignoring malformed feature flags", slog.String("error", err.Error()))
	}

	server := &Server{
		featureFlags:   flags,
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("nexify-api"),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.RateLimitsEnabled()),
		validate:       newValidator(),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		recRepo:        repository.NewRecommendationRepository(db),
		fileRepo:       repository.NewFileRepository(db),
		store:          deps.Storage,
		mailer:         deps.Mailer,
	}

	// Realtime delivery needs Redis; without it events are dropped.
	var events notifications.Publisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		events = server.notifier
	}

	server.fileService = service.NewFileService(server.fileRepo, server.userRepo, server.store,
		cfg.AllowedExtensions(), cfg.UploadMaxSizeMB)
	server.userService = service.NewUserService(server.userRepo, server.mailer, service.UserServiceConfig{
		JWTSecret:   cfg.JWTSecret,
		FrontendURL: cfg.FrontendURL,
	})
	server.postService = service.NewPostService(server.postRepo, server.recRepo, server.userRepo, server.fileService, events)
	server.commentService = service.NewCommentService(server.commentRepo, server.postRepo, events)
	server.followService = service.NewFollowService(server.followRepo, server.userRepo, events)
	server.moderationService = service.NewModerationService(server.postRepo, server.mailer, events)

	server.recommendationJob = jobs.NewRecommendationJob(server.recRepo, cfg.RecommendPostSize)
	server.reconciler = jobs.NewCounterReconciler(server.postRepo)

	return server, nil
}

// RecommendationJob exposes the job so the process can schedule it.
func (s *Server) RecommendationJob() *jobs.RecommendationJob { return s.recommendationJob }

// CounterReconciler exposes the reconciler so the process can schedule it.
func (s *Server) CounterReconciler() *jobs.CounterReconciler { return s.reconciler }

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before the limiter so throttled responses still carry
	// CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	if local, ok := s.store.(*storage.LocalStorage); ok {
		app.Static("/media", local.Dir())
	}

	limit := s.rateLimiter.Limit

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", limit(signupRule), s.Signup)
	auth.Post("/login", limit(loginRule), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/forgot-password", limit(forgotPasswordRule), s.ForgotPassword)
	auth.Post("/reset-password", limit(resetPasswordRule), s.ResetPassword)

	authed := s.AuthRequired()

	// WebSocket ticket issuance and the socket itself
	api.Post("/ws/ticket", authed, s.IssueWSTicket)
	api.Get("/ws", authed, s.requireFlag(featureflags.Realtime), s.WebsocketHandler())

	users := api.Group("/users", authed)
	users.Get("/me", s.GetMyProfile)
	users.Patch("/me", s.UpdateMyProfile)
	users.Delete("/me", s.DeleteMyAccount)
	users.Get("/me/follow-requests", s.GetFollowRequests)
	users.Post("/me/follow-requests/:followerId/accept", s.AcceptFollowRequest)
	users.Delete("/me/follow-requests/:followerId", s.DeleteFollowRequest)
	users.Get("/me/followers", s.GetFollowers)
	users.Get("/me/following", s.GetFollowing)
	users.Post("/:id/follow", limit(followRule), s.ToggleFollow)
	users.Get("/:id", s.GetUserProfile)

	posts := api.Group("/posts", authed)
	posts.Get("/", s.GetPosts)
	posts.Post("/", limit(createPostRule), s.CreatePost)
	posts.Get("/recommended", s.requireFlag(featureflags.RecommendedFeed), s.GetRecommendedPosts)
	posts.Put("/:id/like", s.ToggleLike)
	posts.Post("/:id/report", limit(reportPostRule), s.ReportPost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", limit(createCommentRule), s.CreateComment)
	posts.Get("/:id", s.GetPost)
	posts.Patch("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	api.Delete("/comments/:id", authed, s.DeleteComment)
	api.Post("/files", authed, limit(uploadRule), s.UploadFile)
	api.Get("/feature-flags/me", authed, s.GetFeatureFlags)

	admin := api.Group("/admin", authed, s.AdminRequired())
	admin.Get("/reported-posts", s.GetReportedPosts)
	admin.Delete("/posts/:id", s.AdminDeletePost)
	admin.Get("/users", s.ListUsers)
	admin.Post("/users/:id/staff", s.SetStaff)
	admin.Post("/jobs/recommendations", s.RunRecommendationJob)
	admin.Post("/jobs/reconcile-counters", s.RunCounterReconcile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
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

	// Redis backs rate limits and realtime delivery but the API can serve
	// without it.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-staff users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
		if err != nil {
			return respondServiceError(c, err)
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. WebSocket routes
// authenticate with a single-use ticket; everything else with a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" {
			userID, ok := s.redeemWSTicket(c.UserContext(), ticket)
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			return s.authenticated(c, userID, "")
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, middleware.BearerToken(c), middleware.TokenAudience)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		if claims.ID != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), blacklistKey(claims.ID)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("tokenExpiresAt", claims.ExpiresAt)
		return s.authenticated(c, claims.UserID, claims.ID)
	}
}

func (s *Server) authenticated(c *fiber.Ctx, userID uuid.UUID, jti string) error {
	c.Locals("userID", userID)
	if jti != "" {
		c.Locals("jti", jti)
	}
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID))
	return c.Next()
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Nexify API",
		BodyLimit: (s.config.UploadMaxSizeMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
		}
	}

	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			middleware.Logger.Error("error closing storage", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
