// Package server assembles the gin engine and the background worker from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "github.com/yukikurage/taskflow-api/docs"
	"github.com/yukikurage/taskflow-api/internal/audit"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/constants"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/handlers"
	"github.com/yukikurage/taskflow-api/internal/health"
	"github.com/yukikurage/taskflow-api/internal/mail"
	"github.com/yukikurage/taskflow-api/internal/metrics"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/telemetry"
	"github.com/yukikurage/taskflow-api/internal/worker"
	"gorm.io/gorm"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
	sessionMaxAge   = 86400 * 7
)

type Server struct {
	Engine *gin.Engine
	Config *config.Config
	Logger *slog.Logger

	tracker telemetry.Tracker
}

// New wires repositories, services and handlers over db and q.
func New(cfg *config.Config, logger *slog.Logger, db *gorm.DB, q queue.Queue) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	tracker := telemetry.New(cfg.TelemetryKey, cfg.TelemetryEndpoint, logger)
	recorder := audit.NewRecorder(auditRepo, logger)
	dispatcher := mail.NewDispatcher(q)

	userService := services.NewUserService(db, userRepo, recorder)
	taskService := services.NewTaskService(db, taskRepo, userRepo, recorder)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	registrationService := services.NewRegistrationService(db, userService, dispatcher, tracker, logger)
	resetService := services.NewPasswordResetService(userService, dispatcher, logger)
	auditLogService := services.NewAuditLogService(auditRepo)

	store, err := newSessionStore(cfg, q)
	if err != nil {
		return nil, err
	}

	m := metrics.New(metrics.Options{
		DB:      db,
		Queue:   q,
		Users:   userRepo,
		Tasks:   taskRepo,
		Version: cfg.Version,
		Env:     cfg.AppEnv,
		Logger:  logger,
	})
	classifier := apierrors.NewClassifier(cfg.IsProduction(), logger, tracker)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		m.Middleware(),
		middleware.ErrorHandler(classifier),
		middleware.Recovery(classifier),
		sessions.Sessions(constants.SessionCookieName, store),
		middleware.CurrentUser(authService),
	)

	checker := health.NewChecker(db, q, logger)
	r.GET("/health", checker.Health)
	r.GET("/health/live", checker.Live)
	r.GET("/health/ready", checker.Ready)
	r.GET("/metrics", m.Handler())
	r.GET("/api-docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerRoutes(r.Group(constants.APIVersionPrefix), routeHandlers{
		users:         handlers.NewUserHandler(userService, resetService),
		tasks:         handlers.NewTaskHandler(taskService),
		auth:          handlers.NewAuthHandler(authService),
		registrations: handlers.NewRegistrationHandler(registrationService),
		auditLogs:     handlers.NewAuditLogHandler(auditLogService),
	})

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "Route not found", nil)
	})

	return &Server{Engine: r, Config: cfg, Logger: logger, tracker: tracker}, nil
}

type routeHandlers struct {
	users         *handlers.UserHandler
	tasks         *handlers.TaskHandler
	auth          *handlers.AuthHandler
	registrations *handlers.RegistrationHandler
	auditLogs     *handlers.AuditLogHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	users := api.Group("/users")
	{
		users.GET("", h.users.ListUsers)
		users.POST("", h.users.CreateUser)
		users.GET("/:id", h.users.GetUser)
		users.PATCH("/:id", h.users.UpdateUser)
		users.PUT("/:id", h.users.UpdateUser)
		users.DELETE("/:id", h.users.DeleteUser)
		users.POST("/:id/password_reset", h.users.RequestPasswordReset)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("", h.tasks.ListTasks)
		tasks.POST("", h.tasks.CreateTask)
		tasks.GET("/:id", h.tasks.GetTask)
		tasks.PATCH("/:id", h.tasks.UpdateTask)
		tasks.PUT("/:id", h.tasks.UpdateTask)
		tasks.DELETE("/:id", h.tasks.DeleteTask)
		tasks.PATCH("/:id/toggle_status", h.tasks.ToggleStatus)
	}

	auth := api.Group("/auth")
	{
		auth.POST("", h.auth.Login)
		auth.DELETE("", h.auth.Logout)
		auth.GET("/me", middleware.RequireAuth(), h.auth.GetCurrentUser)
	}

	api.POST("/registrations", h.registrations.Register)
	api.GET("/audit_logs", h.auditLogs.ListAuditLogs)
}

// newSessionStore shares the queue's redis pool when there is one and falls
// back to signed cookies otherwise.
func newSessionStore(cfg *config.Config, q queue.Queue) (sessions.Store, error) {
	var store sessions.Store
	if rq, ok := q.(*queue.RedisQueue); ok {
		s, err := redisStore.NewStoreWithPool(rq.Pool(), []byte(cfg.SessionSecret))
		if err != nil {
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		store = s
	} else {
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.Config.Port,
		Handler:      s.Engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("server starting", "event", "server_start", "addr", srv.Addr, "env", s.Config.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to listen: %w", err)
	case <-ctx.Done():
	}

	s.Logger.Info("shutting down server", "event", "server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	_ = s.tracker.Close(shutdownCtx)

	s.Logger.Info("server exited", "event", "server_stopped")
	return nil
}

// NewWorkerPool builds the mail worker over q.
func NewWorkerPool(cfg *config.Config, logger *slog.Logger, db *gorm.DB, q queue.Queue) (*worker.Pool, error) {
	pool := worker.NewPool(q, worker.Options{
		Queue:       constants.MailQueue,
		Concurrency: cfg.WorkerConcurrency,
		MaxRetries:  cfg.MailMaxRetries,
	}, logger)

	sender, err := mail.NewSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	mail.NewHandler(repository.NewUserRepository(db), sender, logger).Register(pool)
	return pool, nil
}
