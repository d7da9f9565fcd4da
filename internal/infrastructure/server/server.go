package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	httpHandlers "github.com/familyhub/core/internal/adapters/http"
	"github.com/familyhub/core/internal/adapters/repository"
	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/mailer"
	"github.com/familyhub/core/internal/ports"
	"github.com/familyhub/core/internal/queue"
)

// Server represents the HTTP server.
type Server struct {
	echo      *echo.Echo
	config    *config.Config
	logger    *logger.Logger
	store     store.Store
	publisher *queue.Publisher
}

// CustomValidator wraps the validator.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance. redisClient may be nil; the
// verification-code store then lives in process memory.
func New(cfg *config.Config, st store.Store, redisClient *redis.Client, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Repositories
	userRepo := repository.NewUserRepository(st)
	familyRepo := repository.NewFamilyRepository(st)
	plannerRepo := repository.NewPlannerRepository(st)
	workoutRepo := repository.NewWorkoutRepository(st)

	var verificationRepo ports.VerificationRepository
	if redisClient != nil {
		verificationRepo = repository.NewRedisVerificationRepository(redisClient)
	} else {
		verificationRepo = repository.NewMemoryVerificationRepository()
	}

	// Outbound adapters
	publisher := queue.NewPublisher(cfg.Queue, appLogger)
	mail, err := mailer.New(cfg.Mailer, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	// Services
	directoryService := services.NewDirectoryService(userRepo, plannerRepo, cfg.JWT, appLogger)
	familyService := services.NewFamilyService(familyRepo, userRepo, publisher, appLogger)
	plannerService := services.NewPlannerService(plannerRepo, userRepo, publisher, appLogger)
	workoutService := services.NewWorkoutService(workoutRepo, userRepo, publisher, appLogger)
	verificationService := services.NewVerificationService(verificationRepo, userRepo, mail, appLogger)
	assistantService := services.NewAssistantService(cfg.Assistant, appLogger)

	// Handlers
	userHandler := httpHandlers.NewUserHandler(directoryService, appLogger)
	familyHandler := httpHandlers.NewFamilyHandler(familyService, appLogger)
	plannerHandler := httpHandlers.NewPlannerHandler(plannerService, appLogger)
	workoutHandler := httpHandlers.NewWorkoutHandler(workoutService, appLogger)
	verificationHandler := httpHandlers.NewVerificationHandler(verificationService, appLogger)
	assistantHandler := httpHandlers.NewAssistantHandler(assistantService, appLogger)

	server := &Server{
		echo:      e,
		config:    cfg,
		logger:    appLogger,
		store:     st,
		publisher: publisher,
	}

	server.setupMiddleware()
	server.setupRoutes(userHandler, familyHandler, plannerHandler, workoutHandler, verificationHandler, assistantHandler)

	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	return server, nil
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes(userHandler *httpHandlers.UserHandler, familyHandler *httpHandlers.FamilyHandler, plannerHandler *httpHandlers.PlannerHandler, workoutHandler *httpHandlers.WorkoutHandler, verificationHandler *httpHandlers.VerificationHandler, assistantHandler *httpHandlers.AssistantHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Auth routes
	authGroup := v1.Group("/auth")
	authGroup.POST("/login", userHandler.Login)
	authGroup.POST("/send-verification", verificationHandler.Send)
	authGroup.POST("/verify-code", verificationHandler.Verify)

	// Directory routes
	userGroup := v1.Group("/users")
	userGroup.POST("", userHandler.CreateUser)
	userGroup.GET("", userHandler.ListUsers)
	userGroup.GET("/:username", userHandler.GetUser)
	userGroup.PUT("/:username", userHandler.UpdateUser)

	// Family routes
	familyGroup := v1.Group("/families")
	familyGroup.GET("", familyHandler.ListFamilies)
	familyGroup.POST("", familyHandler.CreateFamily)
	familyGroup.GET("/:id", familyHandler.GetFamily)
	familyGroup.PUT("/:id", familyHandler.ReplaceFamily)
	familyGroup.PATCH("/:id", familyHandler.PatchFamily)

	// Planner routes
	plannerGroup := v1.Group("/planners")
	plannerGroup.GET("/shared/:code", plannerHandler.GetSharedEntry)
	plannerGroup.GET("/:username", plannerHandler.GetPlanner)
	plannerGroup.PUT("/:username", plannerHandler.ReplacePlanner)

	// Workout routes
	workoutGroup := v1.Group("/workouts")
	workoutGroup.GET("/:username", workoutHandler.GetWorkout)
	workoutGroup.PUT("/:username", workoutHandler.ReplaceWorkout)

	// Assistant route
	v1.POST("/assistant", assistantHandler.Generate)
}

// setupMetrics configures Prometheus metrics.
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	// A readable users collection means the store is up and the
	// process can serve.
	err := s.store.ViewUsers(c.Request().Context(), func([]entities.User) error { return nil })
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "store_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server.
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors.
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = map[string]interface{}{"error": he.Message}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if ve, ok := err.(validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"error": "validation failed", "details": ve.Error()}
		} else {
			msg = map[string]string{"error": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
