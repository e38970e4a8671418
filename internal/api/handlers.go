package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/newsletter-agent/internal/settings"
	"github.com/newsletter-agent/internal/storage"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	body := map[string]interface{}{
		"status":    "ok",
		"scheduler": s.trigger.State(),
	}
	if next := s.trigger.Next(); !next.IsZero() {
		body["next_run"] = next.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) listURLs(c echo.Context) error {
	urls, err := s.store.ListSources(c.Request().Context())
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"urls": urls})
}

func (s *Server) addURL(c echo.Context) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	added, err := s.store.AddSource(c.Request().Context(), strings.TrimSpace(req.URL))
	if err != nil {
		return s.internalError(err)
	}
	if !added {
		return c.JSON(http.StatusBadRequest, response{Message: "Invalid URL or already exists"})
	}
	return c.JSON(http.StatusCreated, response{Success: true})
}

func (s *Server) removeURL(c echo.Context) error {
	target := c.QueryParam("url")
	if target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url query parameter is required")
	}
	if err := s.store.RemoveSource(c.Request().Context(), target); err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, response{Success: true})
}

func (s *Server) listArticles(c echo.Context) error {
	limit := storage.DefaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	articles, err := s.store.RecentArticles(c.Request().Context(), limit)
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, articles)
}

func (s *Server) listNewsletters(c echo.Context) error {
	newsletters, err := s.store.QueryNewsletters(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, newsletters)
}

func (s *Server) getNewsletter(c echo.Context) error {
	id, err := newsletterID(c)
	if err != nil {
		return err
	}

	newsletter, err := s.store.GetNewsletter(c.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "newsletter not found")
	}
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, newsletter)
}

func (s *Server) attachAudio(c echo.Context) error {
	id, err := newsletterID(c)
	if err != nil {
		return err
	}

	var req struct {
		AudioURL string `json:"audio_url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if u, err := url.Parse(req.AudioURL); err != nil || u.Scheme == "" || u.Host == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "audio_url must be an absolute URL")
	}

	err = s.store.AttachAudio(c.Request().Context(), id, req.AudioURL)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "newsletter not found")
	}
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, response{Success: true})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages":  s.status.Messages(),
		"scheduler": s.trigger.State(),
	})
}

func (s *Server) process(c echo.Context) error {
	if !s.trigger.TriggerNow() {
		return c.JSON(http.StatusConflict, response{Message: "Processing already running"})
	}
	s.status.Add("Manual processing started")
	return c.JSON(http.StatusAccepted, response{Success: true, Message: "Processing started"})
}

func (s *Server) getSettings(c echo.Context) error {
	all, err := s.settings.List(c.Request().Context())
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, all)
}

func (s *Server) updateSettings(c echo.Context) error {
	var values map[string]string
	if err := c.Bind(&values); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "settings must be a JSON object of strings")
	}

	err := s.settings.SetMany(c.Request().Context(), values)
	var vErr *settings.ValidationError
	if errors.As(err, &vErr) {
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	}
	if err != nil {
		return s.internalError(err)
	}
	return c.JSON(http.StatusOK, response{Success: true})
}

func newsletterID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid newsletter id")
	}
	return uint(id), nil
}

func (s *Server) internalError(err error) error {
	s.log.Error().Err(err).Msg("Request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
