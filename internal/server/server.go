package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mailtriage/internal/app"
	"mailtriage/internal/config"
	"mailtriage/internal/handlers"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Server represents the application server
type Server struct {
	echo   *echo.Echo
	app    *app.App
	config *config.Config
	logger zerolog.Logger
}

// New creates a new server instance
func New(a *app.App, logger zerolog.Logger) *Server {
	return &Server{
		app:    a,
		config: a.Config,
		logger: logger,
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			event := s.logger.Info()
			if res.Status >= http.StatusInternalServerError {
				event = s.logger.Warn()
			}
			event.
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	a := s.app

	// API group with /api prefix
	api := s.echo.Group("/api")

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(a.DB))

	api.GET("/", handlers.RootHandler(s.config.Version))

	// Ingestion
	api.POST("/emails/webhook", handlers.WebhookHandler(a.Processor, s.logger))
	api.POST("/emails/:id/forward", handlers.ForwardEmailHandler(a.Processor))
	api.POST("/admin/process-emails", handlers.ProcessEmailsHandler(a.Scheduler, s.logger))

	// Staff worklist and conversations
	api.GET("/inbox", handlers.InboxHandler(a.Store))
	api.GET("/conversations", handlers.ListConversationsHandler(a.Store))
	api.GET("/conversations/closed", handlers.ListClosedConversationsHandler(a.Store))
	api.GET("/conversations/:id", handlers.GetConversationHandler(a.Store))
	api.PUT("/conversations/:id", handlers.UpdateConversationHandler(a.Store, a.Resolver))
	api.DELETE("/conversations/:id", handlers.DeleteConversationHandler(a.Store, a.Blobs, s.logger))
	api.POST("/conversations/:id/reply", handlers.ReplyHandler(a.Processor))

	// Directory
	api.GET("/staff", handlers.ListStaffHandler(a.Staff))
	api.POST("/staff", handlers.CreateStaffHandler(a.Staff))
	api.PUT("/staff/:id", handlers.UpdateStaffHandler(a.Staff))
	api.GET("/clients", handlers.ListClientsHandler(a.Store))

	api.GET("/analytics", handlers.AnalyticsHandler(a.Analytics, s.logger))
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until ctx is canceled
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(":" + s.config.Port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down server")
	return s.echo.Shutdown(shutdownCtx)
}
