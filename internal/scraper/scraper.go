// Package scraper drives the per-file scrape pipeline: parse the
// filename, find the series on TMDB, resolve season and episode, check
// the media server for conflicts, then write NFOs, place the file and
// bring subtitles and artwork along.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/artwork"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/emby"
	"github.com/shelfstream/shelfstream/internal/nfo"
	"github.com/shelfstream/shelfstream/internal/organizer"
	"github.com/shelfstream/shelfstream/internal/parser"
	"github.com/shelfstream/shelfstream/internal/subtitle"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

// Status is the terminal outcome of one scrape run.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusNeedSelection     Status = "need_selection"
	StatusNeedSeasonEpisode Status = "need_season_episode"
	StatusMDBConflict       Status = "mdb_conflict"
	StatusNoMatch           Status = "no_match"
	StatusSearchFailed      Status = "search_failed"
	StatusAPIFailed         Status = "api_failed"
	StatusNFOFailed         Status = "nfo_failed"
	StatusMoveFailed        Status = "move_failed"
	StatusFileConflict      Status = "file_conflict"
	StatusFailed            Status = "failed"
)

// Pipeline step names as they appear in run logs.
const (
	StepCheck     = "check"
	StepParse     = "parse"
	StepSearch    = "search"
	StepDetails   = "details"
	StepResolve   = "resolve"
	StepConflict  = "conflict"
	StepNFO       = "nfo"
	StepPlace     = "place"
	StepSubtitles = "subtitles"
	StepArtwork   = "artwork"
)

// LogEntry is one line of a run log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Step    string    `json:"step"`
	Level   string    `json:"level"` // running, success, warning, error
	Message string    `json:"message"`
}

// Result is the outcome of a scrape run.
type Result struct {
	RunID          string              `json:"run_id"`
	FilePath       string              `json:"file_path"`
	Status         Status              `json:"status"`
	Message        string              `json:"message,omitempty"`
	DestPath       string              `json:"dest_path,omitempty"`
	SeriesID       int                 `json:"series_id,omitempty"`
	SeriesName     string              `json:"series_name,omitempty"`
	Season         int                 `json:"season,omitempty"`
	Episode        int                 `json:"episode,omitempty"`
	EffectiveQuery string              `json:"effective_query,omitempty"` // fallback query that produced results
	Candidates     []tmdb.SearchResult `json:"candidates,omitempty"`      // need_selection
	SeasonInfo     []tmdb.Season       `json:"season_info,omitempty"`     // need_season_episode
	EmbyConflict   *emby.Result        `json:"emby_conflict,omitempty"`   // mdb_conflict
	Log            []LogEntry          `json:"log"`
}

// Options adjusts one scrape run. Settings are the resolved runtime
// settings for the run, already overlaid with any per-job overrides.
type Options struct {
	TMDBID            int // explicit series id, skips search
	Season            *int
	Episode           *int
	AutoSelect        bool // pick a lone search candidate without asking
	LinkMode          organizer.LinkMode
	DeleteEmptyParent bool
	Settings          config.Settings
	OnUpdate          func(runID string, entries []LogEntry)
}

// Service runs the pipeline.
type Service struct {
	parser    *parser.Service
	tmdb      *tmdb.Client
	nfo       *nfo.Writer
	organizer *organizer.Service
	subtitles *subtitle.Service
	artwork   *artwork.Downloader
	emby      *emby.Client
	logger    zerolog.Logger
}

// NewService wires the pipeline stages together.
func NewService(
	parserSvc *parser.Service,
	tmdbClient *tmdb.Client,
	nfoWriter *nfo.Writer,
	organizerSvc *organizer.Service,
	subtitleSvc *subtitle.Service,
	artworkDl *artwork.Downloader,
	embyClient *emby.Client,
	logger zerolog.Logger,
) *Service {
	return &Service{
		parser:    parserSvc,
		tmdb:      tmdbClient,
		nfo:       nfoWriter,
		organizer: organizerSvc,
		subtitles: subtitleSvc,
		artwork:   artworkDl,
		emby:      embyClient,
		logger:    logger.With().Str("component", "scraper").Logger(),
	}
}

// run carries the mutable state of one pipeline pass.
type run struct {
	svc    *Service
	result *Result
	opts   Options
}

func (s *Service) newRun(filePath string, opts Options) *run {
	return &run{
		svc: s,
		result: &Result{
			RunID:    uuid.NewString(),
			FilePath: filePath,
		},
		opts: opts,
	}
}

// log appends an entry and fires the update callback.
func (r *run) log(step, level, format string, args ...interface{}) {
	entry := LogEntry{
		Time:    time.Now().UTC(),
		Step:    step,
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
	r.result.Log = append(r.result.Log, entry)
	if r.opts.OnUpdate != nil {
		r.opts.OnUpdate(r.result.RunID, r.result.Log)
	}
}

// finish sets the terminal status and returns the result.
func (r *run) finish(status Status, format string, args ...interface{}) *Result {
	r.result.Status = status
	r.result.Message = fmt.Sprintf(format, args...)
	r.svc.logger.Info().
		Str("run_id", r.result.RunID).
		Str("file", r.result.FilePath).
		Str("status", string(status)).
		Msg(r.result.Message)
	return r.result
}

// ScrapeFile runs the full pipeline for one video file.
func (s *Service) ScrapeFile(ctx context.Context, filePath string, opts Options) (result *Result) {
	if !opts.LinkMode.Valid() {
		opts.LinkMode = organizer.ModeHardlink
	}
	r := s.newRun(filePath, opts)

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Str("file", filePath).Msg("scrape panicked")
			r.log(StepPlace, "error", "internal error: %v", rec)
			result = r.finish(StatusFailed, "internal error")
		}
	}()

	// the source must exist before any metadata work starts
	r.log(StepCheck, "running", "checking %s", filepath.Base(filePath))
	if _, err := os.Stat(filePath); err != nil {
		r.log(StepCheck, "error", "file not found: %s", filePath)
		return r.finish(StatusMoveFailed, "file not found: %s", filePath)
	}
	r.log(StepCheck, "success", "source file present")

	// parse
	r.log(StepParse, "running", "parsing %s", filepath.Base(filePath))
	parsed := s.parser.Parse(filePath)
	seriesID := opts.TMDBID
	if seriesID == 0 && parsed.TMDBID != nil {
		seriesID = *parsed.TMDBID
	}
	if seriesID == 0 && parsed.SeriesName == nil {
		r.log(StepParse, "error", "could not extract a series name")
		return r.finish(StatusNoMatch, "filename not recognized")
	}
	name := ""
	if parsed.SeriesName != nil {
		name = *parsed.SeriesName
	}
	r.log(StepParse, "success", "parsed name=%q season=%s episode=%s confidence=%.2f",
		name, fmtIntPtr(parsed.Season), fmtIntPtr(parsed.Episode), parsed.Confidence)

	// search
	if seriesID == 0 {
		r.log(StepSearch, "running", "searching for %q", name)
		resp, err := s.tmdb.SearchTV(ctx, name)
		if err != nil {
			r.log(StepSearch, "error", "search failed: %v", err)
			return r.finish(StatusSearchFailed, "search failed: %v", err)
		}
		if resp.EffectiveQuery != "" && resp.EffectiveQuery != name {
			r.result.EffectiveQuery = resp.EffectiveQuery
			r.log(StepSearch, "warning", "no results for %q, matched fallback query %q", name, resp.EffectiveQuery)
		}
		candidates := adultOnly(resp.Results)
		switch {
		case len(candidates) == 0:
			r.log(StepSearch, "error", "no matching series for %q", name)
			return r.finish(StatusNoMatch, "no matching series for %q", name)
		case len(candidates) == 1 && opts.AutoSelect:
			seriesID = candidates[0].ID
			r.log(StepSearch, "success", "matched %q (%d)", candidates[0].Name, seriesID)
		default:
			r.log(StepSearch, "warning", "%d candidates, selection needed", len(candidates))
			r.result.Candidates = s.tmdb.EnrichSearchResults(ctx, candidates)
			return r.finish(StatusNeedSelection, "%d candidates for %q", len(candidates), name)
		}
	} else {
		r.log(StepSearch, "success", "using series id %d", seriesID)
	}

	// details
	r.log(StepDetails, "running", "fetching series %d", seriesID)
	series, err := s.tmdb.GetSeries(ctx, seriesID)
	if err != nil {
		r.log(StepDetails, "error", "series detail failed: %v", err)
		return r.finish(StatusAPIFailed, "series detail failed: %v", err)
	}
	r.result.SeriesID = series.ID
	r.result.SeriesName = series.Name
	r.log(StepDetails, "success", "series %q (%d), %d seasons %d episodes",
		series.Name, series.ID, series.NumberOfSeasons, series.NumberOfEpisodes)

	// resolve season/episode
	r.log(StepResolve, "running", "resolving season and episode")
	season := 1
	if opts.Season != nil {
		season = *opts.Season
	} else if parsed.Season != nil {
		season = *parsed.Season
	}

	var episodeNum int
	switch {
	case opts.Episode != nil:
		episodeNum = *opts.Episode
	case parsed.Episode != nil:
		episodeNum = *parsed.Episode
	case series.NumberOfEpisodes == 1:
		episodeNum = 1
		r.log(StepResolve, "warning", "no episode in filename, single-episode series assumed episode 1")
	default:
		seasonDetail, err := s.tmdb.GetSeason(ctx, series.ID, season)
		if err == nil {
			r.result.SeasonInfo = []tmdb.Season{*seasonDetail}
		}
		r.log(StepResolve, "error", "no episode number and series has %d episodes", series.NumberOfEpisodes)
		return r.finish(StatusNeedSeasonEpisode, "episode number required")
	}
	r.result.Season = season
	r.result.Episode = episodeNum

	episode := s.resolveEpisode(ctx, r, series.ID, season, episodeNum)
	r.log(StepResolve, "success", "S%02dE%02d %q", season, episodeNum, episode.Name)

	// conflict check
	r.log(StepConflict, "running", "checking media server")
	conflict := s.emby.CheckEpisode(ctx, series.Name, series.ID, season, episodeNum)
	switch conflict.Type {
	case emby.EpisodeExists:
		r.result.EmbyConflict = &conflict
		r.log(StepConflict, "error", "%s", conflict.Message)
		return r.finish(StatusMDBConflict, "%s", conflict.Message)
	case emby.SeriesExists:
		r.log(StepConflict, "warning", "series already in library, episode missing")
	default:
		r.log(StepConflict, "success", "no conflict")
	}

	// plan the placement before touching anything
	cfg := opts.Settings
	req := organizer.Request{
		SourcePath:        filePath,
		LibraryDir:        cfg.Organize.LibraryDir,
		MetadataDir:       cfg.Organize.MetadataDir,
		Mode:              opts.LinkMode,
		DeleteEmptyParent: opts.DeleteEmptyParent,
		Templates:         cfg.Naming,
		Values: organizer.Values{
			Title:         series.Name,
			OriginalTitle: series.OriginalName,
			Year:          series.Year,
			Season:        season,
			Episode:       episodeNum,
			EpisodeTitle:  episode.Name,
			AirDate:       episode.AirDate,
			TMDBID:        series.ID,
		},
	}
	plan, err := s.organizer.Preview(req)
	if err != nil {
		r.log(StepPlace, "error", "placement plan failed: %v", err)
		return r.finish(StatusMoveFailed, "placement plan failed: %v", err)
	}
	if _, err := os.Stat(plan.DestPath); err == nil {
		r.log(StepPlace, "error", "destination exists: %s", plan.DestPath)
		return r.finish(StatusFileConflict, "destination exists: %s", plan.DestPath)
	}

	destDir := filepath.Dir(plan.DestPath)
	seriesDir := destDir
	if plan.SeasonFolder != "" {
		seriesDir = filepath.Dir(destDir)
	}

	// nfo
	var written []string
	if cfg.Metadata.NFOEnabled {
		r.log(StepNFO, "running", "writing NFO files")
		written, err = s.writeNFOs(r, seriesDir, destDir, plan, series, episode, cfg.Metadata)
		if err != nil {
			if cfg.Organize.DeleteMetadataOnFail {
				for _, path := range written {
					os.Remove(path)
				}
			}
			return r.finish(StatusNFOFailed, "episode nfo failed: %v", err)
		}
	} else {
		r.log(StepNFO, "success", "NFO generation disabled")
	}

	// place file
	r.log(StepPlace, "running", "placing via %s", opts.LinkMode)
	dest, err := s.organizer.Execute(req)
	if err != nil {
		if cfg.Organize.DeleteMetadataOnFail {
			for _, path := range written {
				os.Remove(path)
			}
		}
		if errors.Is(err, organizer.ErrDestinationExists) {
			r.log(StepPlace, "error", "%v", err)
			return r.finish(StatusFileConflict, "%v", err)
		}
		r.log(StepPlace, "error", "%v", err)
		return r.finish(StatusMoveFailed, "%v", err)
	}
	r.result.DestPath = dest
	r.log(StepPlace, "success", "placed at %s", dest)

	// subtitles
	s.placeSubtitles(r, filePath, dest, parsed.Season, parsed.Episode, opts.LinkMode)

	// artwork
	r.log(StepArtwork, "running", "fetching artwork")
	s.artwork.DownloadSeriesImages(ctx, seriesDir, series, cfg.Download)
	s.artwork.DownloadEpisodeStill(ctx, dest, episode, cfg.Download)
	if meta := s.metadataMirror(plan); meta != "" {
		s.artwork.DownloadSeriesImages(ctx, filepath.Dir(meta), series, cfg.Download)
	}
	r.log(StepArtwork, "success", "artwork done")

	return r.finish(StatusSuccess, "scraped %s S%02dE%02d", series.Name, season, episodeNum)
}

// resolveEpisode fetches episode metadata from the season detail,
// falling back to a bare season/episode pair when the lookup fails or
// the episode is not listed yet.
func (s *Service) resolveEpisode(ctx context.Context, r *run, seriesID, season, episodeNum int) *tmdb.Episode {
	seasonDetail, err := s.tmdb.GetSeason(ctx, seriesID, season)
	if err != nil {
		r.log(StepResolve, "warning", "season detail unavailable: %v", err)
	} else {
		for i := range seasonDetail.Episodes {
			if seasonDetail.Episodes[i].EpisodeNumber == episodeNum {
				return &seasonDetail.Episodes[i]
			}
		}
		r.log(StepResolve, "warning", "episode %d not listed in season %d", episodeNum, season)
	}
	return &tmdb.Episode{SeasonNumber: season, EpisodeNumber: episodeNum}
}

// writeNFOs writes series, season and episode NFOs into the planned
// layout and its metadata mirror. Returns the paths written so a
// failed run can clean them up. Series and season NFO failures log
// and continue; a failed episode NFO ends the run.
func (s *Service) writeNFOs(r *run, seriesDir, destDir string, plan *organizer.Preview, series *tmdb.Series, episode *tmdb.Episode, opts config.MetadataSettings) ([]string, error) {
	var written []string

	targets := []struct{ series, season string }{
		{seriesDir, destDir},
	}
	if meta := s.metadataMirror(plan); meta != "" {
		targets = append(targets, struct{ series, season string }{filepath.Dir(meta), meta})
	}

	for _, t := range targets {
		if ok, err := s.nfo.WriteSeriesNFO(t.series, series, opts); err != nil {
			r.log(StepNFO, "warning", "tvshow.nfo failed: %v", err)
		} else if ok {
			written = append(written, filepath.Join(t.series, "tvshow.nfo"))
		}

		seasonStub := seasonFor(series, episode.SeasonNumber)
		if t.season != t.series {
			if ok, err := s.nfo.WriteSeasonNFO(t.season, seasonStub, opts); err != nil {
				r.log(StepNFO, "warning", "season.nfo failed: %v", err)
			} else if ok {
				written = append(written, filepath.Join(t.season, "season.nfo"))
			}
		}
	}

	episodeNFOBase := filepath.Join(destDir, plan.Filename)
	if err := s.nfo.WriteEpisodeNFO(episodeNFOBase, series, episode, opts); err != nil {
		r.log(StepNFO, "error", "episode nfo failed: %v", err)
		return written, err
	}
	stem := strings.TrimSuffix(episodeNFOBase, filepath.Ext(episodeNFOBase))
	written = append(written, stem+".nfo")

	r.log(StepNFO, "success", "wrote %d NFO files", len(written))
	return written, nil
}

// placeSubtitles brings matching subtitles from the source directory
// along with the placed video.
func (s *Service) placeSubtitles(r *run, sourcePath, destPath string, season, episode *int, mode organizer.LinkMode) {
	r.log(StepSubtitles, "running", "matching subtitles")

	files := s.subtitles.ScanDir(filepath.Dir(sourcePath))
	sourceStem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	matches := s.subtitles.Match(files, sourceStem, season, episode)
	if len(matches) == 0 {
		r.log(StepSubtitles, "success", "no subtitles found")
		return
	}

	destStem := strings.TrimSuffix(filepath.Base(destPath), filepath.Ext(destPath))
	placed := 0
	for _, f := range matches {
		if _, err := s.subtitles.Place(f, filepath.Dir(destPath), destStem, mode); err != nil {
			r.log(StepSubtitles, "warning", "subtitle %s failed: %v", filepath.Base(f.Path), err)
			continue
		}
		placed++
	}
	r.log(StepSubtitles, "success", "placed %d of %d subtitles", placed, len(matches))
}

// metadataMirror returns the season-level metadata directory, empty
// when no mirror is configured.
func (s *Service) metadataMirror(plan *organizer.Preview) string {
	return plan.MetadataPath
}

// seasonFor builds the season NFO payload from the series season list.
func seasonFor(series *tmdb.Series, seasonNumber int) *tmdb.Season {
	for i := range series.Seasons {
		if series.Seasons[i].SeasonNumber == seasonNumber {
			return &series.Seasons[i]
		}
	}
	return &tmdb.Season{SeasonNumber: seasonNumber}
}

// adultOnly keeps the adult-flagged candidates. The pipeline matches
// against the adult catalogue only; everything else is noise.
func adultOnly(results []tmdb.SearchResult) []tmdb.SearchResult {
	filtered := results[:0:0]
	for _, res := range results {
		if res.Adult {
			filtered = append(filtered, res)
		}
	}
	return filtered
}

func fmtIntPtr(n *int) string {
	if n == nil {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}
