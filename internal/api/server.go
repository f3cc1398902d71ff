// Package api exposes the scrape pipeline over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/jobs"
	"github.com/shelfstream/shelfstream/internal/parser"
	"github.com/shelfstream/shelfstream/internal/progress"
	"github.com/shelfstream/shelfstream/internal/scraper"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

// Server handles HTTP requests for the ShelfStream API.
type Server struct {
	echo     *echo.Echo
	logger   zerolog.Logger
	settings *config.Store

	parserService  *parser.Service
	scraperService *scraper.Service
	tmdbClient     *tmdb.Client
	jobStore       *jobs.Store
	jobWorker      *jobs.Worker
	hub            *progress.Hub
}

// NewServer creates the API server over already-wired services.
func NewServer(
	settings *config.Store,
	parserService *parser.Service,
	scraperService *scraper.Service,
	tmdbClient *tmdb.Client,
	jobStore *jobs.Store,
	jobWorker *jobs.Worker,
	hub *progress.Hub,
	logger zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:           e,
		logger:         logger,
		settings:       settings,
		parserService:  parserService,
		scraperService: scraperService,
		tmdbClient:     tmdbClient,
		jobStore:       jobStore,
		jobWorker:      jobWorker,
		hub:            hub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api")

	api.POST("/jobs", s.createJob)
	api.GET("/jobs", s.listJobs)
	api.GET("/jobs/:id", s.getJob)
	api.DELETE("/jobs/:id", s.deleteJob)
	api.POST("/jobs/:id/cancel", s.cancelJob)

	api.POST("/parse", s.parseFile)
	api.POST("/scrape/preview", s.scrapePreview)
	api.POST("/scrape/by-id", s.scrapeByID)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.updateSettings)
	api.POST("/settings/tmdb/verify", s.verifyTMDBToken)

	s.echo.GET("/ws/progress", s.hub.Handle)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	s.hub.Close()
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
