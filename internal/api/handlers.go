package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/jobs"
	"github.com/shelfstream/shelfstream/internal/organizer"
	"github.com/shelfstream/shelfstream/internal/scraper"
)

// --- Jobs ---

func (s *Server) createJob(c echo.Context) error {
	var req jobs.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	job, err := s.jobStore.Create(req)
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	s.jobWorker.Enqueue(job.ID)
	return c.JSON(http.StatusCreated, job)
}

func (s *Server) listJobs(c echo.Context) error {
	status := jobs.Status(c.QueryParam("status"))
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	list, err := s.jobStore.List(status, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) getJob(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.jobStore.Get(id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	tasks, err := s.jobStore.Tasks(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if tasks == nil {
		tasks = []*jobs.Task{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"job":   job,
		"tasks": tasks,
	})
}

func (s *Server) deleteJob(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	switch err := s.jobStore.Delete(id); {
	case errors.Is(err, jobs.ErrJobNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, jobs.ErrJobNotTerminal):
		return c.JSON(http.StatusConflict, map[string]string{"error": "job is still pending or running"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) cancelJob(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if err := s.jobStore.Cancel(id); err != nil {
		if errors.Is(err, jobs.ErrJobNotTerminal) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "only pending jobs can be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

// --- Scraping ---

type parseRequest struct {
	Path string `json:"path"`
}

func (s *Server) parseFile(c echo.Context) error {
	var req parseRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "path is required"})
	}

	return c.JSON(http.StatusOK, s.parserService.Parse(req.Path))
}

type previewRequest struct {
	Path    string `json:"path"`
	TMDBID  int    `json:"tmdb_id,omitempty"`
	Season  *int   `json:"season,omitempty"`
	Episode *int   `json:"episode,omitempty"`
}

func (s *Server) scrapePreview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "path is required"})
	}

	preview, err := s.scraperService.Preview(c.Request().Context(), req.Path, scraper.Options{
		TMDBID:   req.TMDBID,
		Season:   req.Season,
		Episode:  req.Episode,
		Settings: s.settings.Get(),
	})
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, preview)
}

type scrapeByIDRequest struct {
	scraper.ByIDRequest
	LinkMode organizer.LinkMode `json:"link_mode,omitempty"`
}

func (s *Server) scrapeByID(c echo.Context) error {
	var req scrapeByIDRequest
	if err := c.Bind(&req); err != nil || req.Path == "" || req.TMDBID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "path and tmdb_id are required"})
	}

	result := s.scraperService.ScrapeByID(c.Request().Context(), req.ByIDRequest, scraper.Options{
		LinkMode: req.LinkMode,
		Settings: s.settings.Get(),
	})

	return c.JSON(http.StatusOK, result)
}

// --- Settings ---

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.settings.Get())
}

func (s *Server) updateSettings(c echo.Context) error {
	var settings config.Settings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	for _, template := range []string{
		settings.Naming.SeriesFolder,
		settings.Naming.SeasonFolder,
		settings.Naming.EpisodeFile,
	} {
		if err := organizer.Validate(template); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	// A changed TMDB token must pass verification before it is saved.
	if token := settings.TMDB.Token; token != "" && token != s.settings.Get().TMDB.Token {
		status, err := s.tmdbClient.VerifyToken(c.Request().Context(), token)
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		if !status.Valid {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": status.Message})
		}
	}

	if err := s.settings.Update(settings); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, s.settings.Get())
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) verifyTMDBToken(c echo.Context) error {
	var req verifyTokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "token is required"})
	}

	status, err := s.tmdbClient.VerifyToken(c.Request().Context(), req.Token)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, status)
}
