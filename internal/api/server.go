// Package api exposes a thin HTTP surface for the dashboard and scripts.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newsletter-agent/internal/scheduler"
	"github.com/newsletter-agent/internal/settings"
	"github.com/newsletter-agent/internal/status"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/pkg/logger"
)

// Store is the persistence the API reads and writes
type Store interface {
	storage.SourceStore
	storage.ArticleStore
	storage.NewsletterStore
}

// Trigger starts out-of-band rollups and reports the schedule
type Trigger interface {
	TriggerNow() bool
	State() scheduler.State
	Next() time.Time
}

// Server wraps the echo instance and its dependencies
type Server struct {
	echo     *echo.Echo
	store    Store
	settings *settings.Service
	status   *status.Log
	trigger  Trigger
	log      *logger.Logger
}

// NewServer creates the server and registers every route
func NewServer(store Store, settingsSvc *settings.Service, statusLog *status.Log, trigger Trigger, log *logger.Logger) *Server {
	s := &Server{
		echo:     echo.New(),
		store:    store,
		settings: settingsSvc,
		status:   statusLog,
		trigger:  trigger,
		log:      log.WithComponent("api"),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				s.log.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("Request completed")
			} else {
				s.log.Warn().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("Request failed")
			}
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/urls", s.listURLs)
	api.POST("/urls", s.addURL)
	api.DELETE("/urls", s.removeURL)

	api.GET("/articles", s.listArticles)

	api.GET("/newsletters", s.listNewsletters)
	api.GET("/newsletters/:id", s.getNewsletter)
	api.POST("/newsletters/:id/audio", s.attachAudio)

	api.GET("/status", s.getStatus)
	api.POST("/process", s.process)

	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.updateSettings)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("API server starting")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
