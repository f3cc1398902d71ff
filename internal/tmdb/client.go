// Package tmdb talks to The Movie Database API for TV metadata.
//
// Client settings (token, proxy, language, timeout) are read from the
// settings provider on every call so runtime changes apply without a
// restart. Both v4 bearer tokens and v3 API keys are accepted: tokens
// starting with "eyJ" travel in the Authorization header, anything
// else as the api_key query parameter.
package tmdb

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

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p"

	maxSearchResults = 20
)

var (
	ErrTokenMissing   = errors.New("TMDB API token is not configured")
	ErrSeriesNotFound = errors.New("series not found")
	ErrSeasonNotFound = errors.New("season not found")
	ErrAPIError       = errors.New("TMDB API error")
	ErrRateLimited    = errors.New("TMDB API rate limited")
)

// SettingsProvider supplies the current client settings per call.
type SettingsProvider interface {
	TMDB() config.TMDBSettings
}

// Client is a TMDB API client.
type Client struct {
	baseURL      string
	imageBaseURL string
	settings     SettingsProvider
	logger       zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(settings SettingsProvider, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:      defaultBaseURL,
		imageBaseURL: defaultImageBaseURL,
		settings:     settings,
		logger:       logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// SetBaseURLs overrides the API and image hosts.
func (c *Client) SetBaseURLs(api, image string) {
	if api != "" {
		c.baseURL = api
	}
	if image != "" {
		c.imageBaseURL = image
	}
}

// IsConfigured returns true if an API token is set.
func (c *Client) IsConfigured() bool {
	return c.settings.TMDB().Token != ""
}

// isBearerToken reports whether token is a v4 read access token (a
// JWT) rather than a v3 API key.
func isBearerToken(token string) bool {
	return strings.HasPrefix(token, "eyJ")
}

// httpClient builds a client honoring the current timeout and proxy.
func (c *Client) httpClient(cfg config.TMDBSettings) *http.Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		} else {
			c.logger.Warn().Str("proxy", cfg.Proxy).Msg("invalid proxy URL, ignoring")
		}
	}
	return client
}

// SearchTV searches for TV series, trying relaxed variants of the
// query when the literal one returns nothing.
func (c *Client) SearchTV(ctx context.Context, query string) (*SearchResponse, error) {
	cfg := c.settings.TMDB()
	if cfg.Token == "" {
		return nil, ErrTokenMissing
	}

	results, err := c.searchTVOnce(ctx, cfg, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return &SearchResponse{Results: results}, nil
	}

	for _, candidate := range fallbackQueries(query) {
		results, err = c.searchTVOnce(ctx, cfg, candidate)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			c.logger.Debug().
				Str("query", query).
				Str("effective_query", candidate).
				Int("results", len(results)).
				Msg("fallback query matched")
			return &SearchResponse{Results: results, EffectiveQuery: candidate}, nil
		}
	}

	return &SearchResponse{Results: []SearchResult{}}, nil
}

func (c *Client) searchTVOnce(ctx context.Context, cfg config.TMDBSettings, query string) ([]SearchResult, error) {
	endpoint := fmt.Sprintf("%s/search/tv", c.baseURL)
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "true")
	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}

	var response searchTVResponse
	if err := c.doRequest(ctx, cfg, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := response.Results
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}

	normalized := make([]SearchResult, len(results))
	for i, tv := range results {
		normalized[i] = c.toSearchResult(tv)
	}

	c.logger.Debug().Str("query", query).Int("results", len(normalized)).Msg("TV search completed")
	return normalized, nil
}

// GetSeries gets detailed series info by TMDB ID.
func (c *Client) GetSeries(ctx context.Context, id int) (*Series, error) {
	cfg := c.settings.TMDB()
	if cfg.Token == "" {
		return nil, ErrTokenMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d", c.baseURL, id)
	params := url.Values{}
	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}

	var details tvDetails
	if err := c.doRequest(ctx, cfg, endpoint, params, &details); err != nil {
		return nil, err
	}

	series := c.tvDetailsToSeries(details)
	c.logger.Debug().Int("id", id).Str("title", series.Name).Msg("got series details")
	return &series, nil
}

// GetSeason gets one season with its episode list.
func (c *Client) GetSeason(ctx context.Context, seriesID, seasonNumber int) (*Season, error) {
	cfg := c.settings.TMDB()
	if cfg.Token == "" {
		return nil, ErrTokenMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d/season/%d", c.baseURL, seriesID, seasonNumber)
	params := url.Values{}
	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}

	var details seasonDetails
	if err := c.doRequest(ctx, cfg, endpoint, params, &details); err != nil {
		if errors.Is(err, ErrSeriesNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}

	season := c.seasonDetailsToSeason(details)
	return &season, nil
}

// GetSeriesWithEpisodes gets a series and fills every season with its
// episode list. Specials (season 0) are skipped. A season whose detail
// fetch fails keeps its stub entry so callers still see it exists.
func (c *Client) GetSeriesWithEpisodes(ctx context.Context, id int) (*Series, error) {
	series, err := c.GetSeries(ctx, id)
	if err != nil {
		return nil, err
	}

	for i, stub := range series.Seasons {
		if stub.SeasonNumber == 0 {
			continue
		}
		season, err := c.GetSeason(ctx, id, stub.SeasonNumber)
		if err != nil {
			c.logger.Warn().Err(err).
				Int("series_id", id).
				Int("season", stub.SeasonNumber).
				Msg("failed to fetch season detail")
			continue
		}
		series.Seasons[i] = *season
	}

	return series, nil
}

// EnrichSearchResults fills season and episode counts on candidates so
// users can tell similar series apart. Failures leave the candidate as
// it was.
func (c *Client) EnrichSearchResults(ctx context.Context, results []SearchResult) []SearchResult {
	for i := range results {
		series, err := c.GetSeries(ctx, results[i].ID)
		if err != nil {
			c.logger.Debug().Err(err).Int("id", results[i].ID).Msg("enrich failed")
			continue
		}
		seasons := series.NumberOfSeasons
		episodes := series.NumberOfEpisodes
		results[i].NumberOfSeasons = &seasons
		results[i].NumberOfEpisodes = &episodes
	}
	return results
}

// VerifyToken checks a candidate token against the configuration
// endpoint without touching the stored settings.
func (c *Client) VerifyToken(ctx context.Context, token string) (*TokenStatus, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	cfg := c.settings.TMDB()
	cfg.Token = token

	endpoint := fmt.Sprintf("%s/configuration", c.baseURL)

	req, err := c.newRequest(ctx, cfg, endpoint, url.Values{})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient(cfg).Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return &TokenStatus{Valid: true}, nil
	case http.StatusUnauthorized:
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &TokenStatus{Valid: false, Message: errResp.StatusMessage}, nil
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}
}

// ImageURL builds a full image URL for a TMDB image path.
func (c *Client) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "original"
	}
	return fmt.Sprintf("%s/%s%s", c.imageBaseURL, size, path)
}

func (c *Client) newRequest(ctx context.Context, cfg config.TMDBSettings, endpoint string, params url.Values) (*http.Request, error) {
	if !isBearerToken(cfg.Token) && cfg.Token != "" {
		params.Set("api_key", cfg.Token)
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if isBearerToken(cfg.Token) {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	return req, nil
}

func (c *Client) doRequest(ctx context.Context, cfg config.TMDBSettings, endpoint string, params url.Values, result interface{}) error {
	req, err := c.newRequest(ctx, cfg, endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.httpClient(cfg).Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrSeriesNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API token", ErrAPIError)
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) toSearchResult(tv tvResult) SearchResult {
	year := 0
	if len(tv.FirstAirDate) >= 4 {
		year, _ = strconv.Atoi(tv.FirstAirDate[:4])
	}

	result := SearchResult{
		ID:           tv.ID,
		Name:         tv.Name,
		OriginalName: tv.OriginalName,
		Overview:     tv.Overview,
		FirstAirDate: tv.FirstAirDate,
		Year:         year,
		Adult:        tv.Adult,
	}
	if tv.PosterPath != nil {
		result.PosterURL = c.ImageURL(*tv.PosterPath, "w500")
	}
	return result
}

func (c *Client) tvDetailsToSeries(details tvDetails) Series {
	year := 0
	if len(details.FirstAirDate) >= 4 {
		year, _ = strconv.Atoi(details.FirstAirDate[:4])
	}

	genres := make([]string, len(details.Genres))
	for i, g := range details.Genres {
		genres[i] = g.Name
	}

	seasons := make([]Season, len(details.Seasons))
	for i, s := range details.Seasons {
		seasons[i] = Season{
			ID:           s.ID,
			Name:         s.Name,
			Overview:     s.Overview,
			AirDate:      s.AirDate,
			SeasonNumber: s.SeasonNumber,
			EpisodeCount: s.EpisodeCount,
			PosterPath:   s.PosterPath,
		}
	}

	series := Series{
		ID:               details.ID,
		Name:             details.Name,
		OriginalName:     details.OriginalName,
		Overview:         details.Overview,
		FirstAirDate:     details.FirstAirDate,
		Year:             year,
		Status:           details.Status,
		Genres:           genres,
		NumberOfSeasons:  details.NumberOfSeasons,
		NumberOfEpisodes: details.NumberOfEpisodes,
		Adult:            details.Adult,
		Seasons:          seasons,
	}
	if details.PosterPath != nil {
		series.PosterPath = *details.PosterPath
	}
	if details.BackdropPath != nil {
		series.BackdropPath = *details.BackdropPath
	}
	return series
}

func (c *Client) seasonDetailsToSeason(details seasonDetails) Season {
	episodes := make([]Episode, len(details.Episodes))
	for i, ep := range details.Episodes {
		episodes[i] = Episode{
			ID:            ep.ID,
			Name:          ep.Name,
			Overview:      ep.Overview,
			AirDate:       ep.AirDate,
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
		}
		if ep.StillPath != nil {
			episodes[i].StillPath = *ep.StillPath
		}
		if ep.Runtime != nil {
			episodes[i].Runtime = *ep.Runtime
		}
	}

	season := Season{
		ID:           details.ID,
		Name:         details.Name,
		Overview:     details.Overview,
		AirDate:      details.AirDate,
		SeasonNumber: details.SeasonNumber,
		EpisodeCount: len(episodes),
		Episodes:     episodes,
	}
	if details.PosterPath != nil {
		season.PosterPath = *details.PosterPath
	}
	return season
}
