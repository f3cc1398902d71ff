// Package emby asks an Emby-compatible media server whether a series
// or episode already exists before a scrape places files.
//
// The check is advisory: transport or server errors degrade to "no
// conflict" with a warning so an unreachable media server never blocks
// organizing.
package emby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
)

var ErrNotConfigured = errors.New("emby server is not configured")

// ConflictType classifies what the media server already has.
type ConflictType string

const (
	NoConflict    ConflictType = "no_conflict"
	SeriesExists  ConflictType = "series_exists"
	EpisodeExists ConflictType = "episode_exists"
)

// Result is the outcome of a conflict check.
type Result struct {
	Type     ConflictType `json:"type"`
	SeriesID string       `json:"series_id,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// SettingsProvider supplies the current server settings per call.
type SettingsProvider interface {
	Emby() config.EmbySettings
}

// Client queries the media server.
type Client struct {
	settings   SettingsProvider
	httpClient *http.Client
	baseURL    string // overrides settings server URL when set (tests)
	logger     zerolog.Logger
}

// NewClient creates a conflict check client.
func NewClient(settings SettingsProvider, logger zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With().Str("component", "emby").Logger(),
	}
}

type itemsResponse struct {
	Items []item `json:"Items"`
}

type item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	IndexNumber       *int              `json:"IndexNumber"`
	ParentIndexNumber *int              `json:"ParentIndexNumber"`
	ProviderIDs       map[string]string `json:"ProviderIds"`
}

// CheckEpisode reports whether the server already has the given
// series, and if so whether it has the given episode.
func (c *Client) CheckEpisode(ctx context.Context, seriesName string, tmdbID, season, episode int) Result {
	cfg := c.settings.Emby()
	if !cfg.Enabled || !cfg.CheckBeforeScrape {
		return Result{Type: NoConflict}
	}
	if cfg.ServerURL == "" || cfg.APIKey == "" {
		c.logger.Warn().Msg("conflict check enabled but server is not configured")
		return Result{Type: NoConflict}
	}

	series, err := c.findSeries(ctx, cfg, seriesName, tmdbID)
	if err != nil {
		c.logger.Warn().Err(err).Str("series", seriesName).Msg("conflict check failed, continuing")
		return Result{Type: NoConflict}
	}
	if series == nil {
		return Result{Type: NoConflict}
	}

	found, err := c.hasEpisode(ctx, cfg, series.ID, season, episode)
	if err != nil {
		c.logger.Warn().Err(err).Str("series", seriesName).Msg("episode lookup failed, continuing")
		return Result{Type: SeriesExists, SeriesID: series.ID, Message: series.Name}
	}
	if found {
		return Result{
			Type:     EpisodeExists,
			SeriesID: series.ID,
			Message:  fmt.Sprintf("%s S%02dE%02d already in library", series.Name, season, episode),
		}
	}

	return Result{Type: SeriesExists, SeriesID: series.ID, Message: series.Name}
}

// findSeries looks a series up by TMDB provider id first, then by
// exact name.
func (c *Client) findSeries(ctx context.Context, cfg config.EmbySettings, name string, tmdbID int) (*item, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "Series")
	params.Set("Recursive", "true")
	params.Set("Fields", "ProviderIds")
	if name != "" {
		params.Set("SearchTerm", name)
	}

	var resp itemsResponse
	if err := c.get(ctx, cfg, "/Items", params, &resp); err != nil {
		return nil, err
	}

	if tmdbID > 0 {
		want := strconv.Itoa(tmdbID)
		for i := range resp.Items {
			if resp.Items[i].ProviderIDs["Tmdb"] == want {
				return &resp.Items[i], nil
			}
		}
	}
	for i := range resp.Items {
		if strings.EqualFold(resp.Items[i].Name, name) {
			return &resp.Items[i], nil
		}
	}
	return nil, nil
}

func (c *Client) hasEpisode(ctx context.Context, cfg config.EmbySettings, seriesID string, season, episode int) (bool, error) {
	params := url.Values{}
	params.Set("Season", strconv.Itoa(season))

	var resp itemsResponse
	if err := c.get(ctx, cfg, fmt.Sprintf("/Shows/%s/Episodes", seriesID), params, &resp); err != nil {
		return false, err
	}

	for _, it := range resp.Items {
		if it.IndexNumber != nil && *it.IndexNumber == episode {
			if it.ParentIndexNumber == nil || *it.ParentIndexNumber == season {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *Client) get(ctx context.Context, cfg config.EmbySettings, path string, params url.Values, result interface{}) error {
	base := c.baseURL
	if base == "" {
		base = strings.TrimRight(cfg.ServerURL, "/")
	}

	reqURL := fmt.Sprintf("%s/emby%s?%s", base, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
