package scraper

import (
	"context"
	"path/filepath"

	"github.com/shelfstream/shelfstream/internal/organizer"
	"github.com/shelfstream/shelfstream/internal/parser"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

// ByIDRequest is a scrape with the series chosen up front, used after
// a run that stopped on NeedSelection or NeedSeasonEpisode.
type ByIDRequest struct {
	Path    string `json:"path"`
	TMDBID  int    `json:"tmdb_id"`
	Season  *int   `json:"season,omitempty"`
	Episode *int   `json:"episode,omitempty"`
}

// ScrapeByID runs the pipeline with an explicit series id and optional
// season/episode override, skipping the search step.
func (s *Service) ScrapeByID(ctx context.Context, req ByIDRequest, opts Options) *Result {
	opts.TMDBID = req.TMDBID
	if req.Season != nil {
		opts.Season = req.Season
	}
	if req.Episode != nil {
		opts.Episode = req.Episode
	}
	return s.ScrapeFile(ctx, req.Path, opts)
}

// PreviewResult shows what a scrape would do without doing it.
type PreviewResult struct {
	Parse      parser.Result       `json:"parse"`
	Candidates []tmdb.SearchResult `json:"candidates,omitempty"`
	Selected   *tmdb.SearchResult  `json:"selected,omitempty"`
	Plan       *organizer.Preview  `json:"plan,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// Preview parses a path, searches for the series and renders the
// destination layout. Nothing is written.
func (s *Service) Preview(ctx context.Context, path string, opts Options) (*PreviewResult, error) {
	if !opts.LinkMode.Valid() {
		opts.LinkMode = organizer.ModeHardlink
	}

	parsed := s.parser.Parse(path)
	out := &PreviewResult{Parse: parsed}

	seriesID := opts.TMDBID
	if seriesID == 0 && parsed.TMDBID != nil {
		seriesID = *parsed.TMDBID
	}

	if seriesID == 0 {
		if parsed.SeriesName == nil {
			out.Message = "filename not recognized"
			return out, nil
		}
		resp, err := s.tmdb.SearchTV(ctx, *parsed.SeriesName)
		if err != nil {
			return nil, err
		}
		candidates := adultOnly(resp.Results)
		if len(candidates) == 0 {
			out.Message = "no results"
			return out, nil
		}
		out.Candidates = candidates
		seriesID = candidates[0].ID
		out.Selected = &candidates[0]
	}

	series, err := s.tmdb.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	season := 1
	if opts.Season != nil {
		season = *opts.Season
	} else if parsed.Season != nil {
		season = *parsed.Season
	}
	episodeNum := 0
	if opts.Episode != nil {
		episodeNum = *opts.Episode
	} else if parsed.Episode != nil {
		episodeNum = *parsed.Episode
	}

	episodeTitle := ""
	airDate := ""
	if episodeNum > 0 {
		if seasonDetail, err := s.tmdb.GetSeason(ctx, seriesID, season); err == nil {
			for _, ep := range seasonDetail.Episodes {
				if ep.EpisodeNumber == episodeNum {
					episodeTitle = ep.Name
					airDate = ep.AirDate
					break
				}
			}
		}
	}

	cfg := opts.Settings
	plan, err := s.organizer.Preview(organizer.Request{
		SourcePath:  path,
		LibraryDir:  cfg.Organize.LibraryDir,
		MetadataDir: cfg.Organize.MetadataDir,
		Mode:        opts.LinkMode,
		Templates:   cfg.Naming,
		Values: organizer.Values{
			Title:         series.Name,
			OriginalTitle: series.OriginalName,
			Year:          series.Year,
			Season:        season,
			Episode:       episodeNum,
			EpisodeTitle:  episodeTitle,
			AirDate:       airDate,
			TMDBID:        series.ID,
		},
	})
	if err != nil {
		out.Message = err.Error()
		return out, nil
	}

	out.Plan = plan
	out.Message = filepath.Base(plan.DestPath)
	return out, nil
}
