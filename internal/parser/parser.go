// Package parser extracts series name, season, episode, year and an
// optional TMDB id from media filenames and their folder context.
//
// Parsing runs as a chain of plugins ordered by ascending priority.
// Each plugin only fills fields that are still unset, so earlier
// plugins (folder context) win over later guesses (filename heuristics).
package parser

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Context carries parse state through the plugin chain.
type Context struct {
	Filename        string // base name including extension
	Filepath        string // full path as submitted
	CleanedFilename string // stem after release-group cleanup

	SeriesName *string
	Season     *int
	Episode    *int
	Year       *int
	TMDBID     *int

	Confidence float64
	Metadata   map[string]string
}

// Stem returns the cleaned filename when available, otherwise the
// filename without its extension.
func (c *Context) Stem() string {
	if c.CleanedFilename != "" {
		return c.CleanedFilename
	}
	name := c.Filename
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Parsed reports whether the chain produced anything usable.
func (c *Context) Parsed() bool {
	return c.Episode != nil || c.SeriesName != nil
}

// Plugin is a single parse step.
type Plugin interface {
	Name() string
	Priority() int
	Skip(*Context) bool
	Parse(*Context) error
}

// Result is the outcome of a full parse.
type Result struct {
	SeriesName *string `json:"series_name"`
	Season     *int    `json:"season"`
	Episode    *int    `json:"episode"`
	Year       *int    `json:"year"`
	TMDBID     *int    `json:"tmdb_id"`
	Confidence float64 `json:"confidence"`
	Parsed     bool    `json:"parsed"`
}

// Service runs the plugin chain.
type Service struct {
	plugins []Plugin
	logger  zerolog.Logger
}

// NewService creates a parser with the default plugin chain.
func NewService(logger zerolog.Logger) *Service {
	s := &Service{
		logger: logger.With().Str("component", "parser").Logger(),
	}
	s.Register(&folderContextPlugin{})
	s.Register(&cleanerPlugin{})
	s.Register(&standardEpisodePlugin{})
	s.Register(&japaneseEpisodePlugin{})
	s.Register(&chineseEpisodePlugin{})
	s.Register(&seriesNamePlugin{})
	return s
}

// Register adds a plugin, keeping the chain sorted by priority.
func (s *Service) Register(p Plugin) {
	s.plugins = append(s.plugins, p)
	sort.SliceStable(s.plugins, func(i, j int) bool {
		return s.plugins[i].Priority() < s.plugins[j].Priority()
	})
}

// Parse runs the chain over a file path.
func (s *Service) Parse(path string) Result {
	ctx := &Context{
		Filename: filepath.Base(path),
		Filepath: path,
		Metadata: map[string]string{},
	}

	for _, p := range s.plugins {
		if p.Skip(ctx) {
			continue
		}
		if err := p.Parse(ctx); err != nil {
			s.logger.Warn().Err(err).Str("plugin", p.Name()).Str("file", ctx.Filename).Msg("parse plugin failed")
		}
	}

	ctx.Confidence = scoreConfidence(ctx)

	return Result{
		SeriesName: ctx.SeriesName,
		Season:     ctx.Season,
		Episode:    ctx.Episode,
		Year:       ctx.Year,
		TMDBID:     ctx.TMDBID,
		Confidence: ctx.Confidence,
		Parsed:     ctx.Parsed(),
	}
}

// scoreConfidence weights the extracted fields. A name alone is worth
// less than a name with an episode; very short names score lower.
func scoreConfidence(ctx *Context) float64 {
	score := 0.0
	if ctx.SeriesName != nil {
		score += 0.4
		if len([]rune(*ctx.SeriesName)) >= 4 {
			score += 0.05
		}
	}
	if ctx.Season != nil {
		score += 0.2
	}
	if ctx.Episode != nil {
		score += 0.3
	}
	if ctx.Year != nil {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
