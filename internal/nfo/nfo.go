// Package nfo writes Kodi/Jellyfin/Emby compatible NFO sidecar files.
package nfo

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

// xmlTVShow is the <tvshow> root element.
type xmlTVShow struct {
	XMLName       xml.Name      `xml:"tvshow"`
	Title         string        `xml:"title,omitempty"`
	OriginalTitle string        `xml:"originaltitle,omitempty"`
	Plot          string        `xml:"plot,omitempty"`
	Year          string        `xml:"year,omitempty"`
	Premiered     string        `xml:"premiered,omitempty"`
	Season        string        `xml:"season,omitempty"`
	Status        string        `xml:"status,omitempty"`
	Genres        []string      `xml:"genre,omitempty"`
	UniqueIDs     []xmlUniqueID `xml:"uniqueid"`
}

// xmlSeason is the <season> root element.
type xmlSeason struct {
	XMLName      xml.Name `xml:"season"`
	Title        string   `xml:"title,omitempty"`
	Plot         string   `xml:"plot,omitempty"`
	SeasonNumber string   `xml:"seasonnumber"`
	Premiered    string   `xml:"premiered,omitempty"`
}

// xmlEpisode is the <episodedetails> root element.
type xmlEpisode struct {
	XMLName   xml.Name      `xml:"episodedetails"`
	Title     string        `xml:"title,omitempty"`
	ShowTitle string        `xml:"showtitle,omitempty"`
	Season    string        `xml:"season"`
	Episode   string        `xml:"episode"`
	Plot      string        `xml:"plot,omitempty"`
	Aired     string        `xml:"aired,omitempty"`
	Runtime   string        `xml:"runtime,omitempty"`
	UniqueIDs []xmlUniqueID `xml:"uniqueid"`
}

type xmlUniqueID struct {
	Type    string `xml:"type,attr"`
	Default string `xml:"default,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Writer generates NFO files for scraped series.
type Writer struct {
	logger zerolog.Logger
}

// NewWriter creates an NFO writer.
func NewWriter(logger zerolog.Logger) *Writer {
	return &Writer{
		logger: logger.With().Str("component", "nfo").Logger(),
	}
}

// WriteSeriesNFO writes tvshow.nfo into dir unless one already exists.
// Returns true when a file was written.
func (w *Writer) WriteSeriesNFO(dir string, series *tmdb.Series, opts config.MetadataSettings) (bool, error) {
	path := filepath.Join(dir, "tvshow.nfo")
	if _, err := os.Stat(path); err == nil {
		w.logger.Debug().Str("path", path).Msg("tvshow.nfo exists, skipping")
		return false, nil
	}

	doc := xmlTVShow{
		OriginalTitle: series.OriginalName,
		Premiered:     series.FirstAirDate,
		Status:        series.Status,
		Genres:        series.Genres,
		UniqueIDs: []xmlUniqueID{
			{Type: "tmdb", Default: "true", Value: fmt.Sprintf("%d", series.ID)},
		},
	}
	if series.NumberOfSeasons > 0 {
		doc.Season = fmt.Sprintf("%d", series.NumberOfSeasons)
	}
	if series.Year > 0 {
		doc.Year = fmt.Sprintf("%d", series.Year)
	}
	if opts.ScrapeTitle {
		doc.Title = series.Name
	}
	if opts.ScrapePlot {
		doc.Plot = series.Overview
	}

	if err := writeNFOFile(path, doc); err != nil {
		return false, err
	}
	w.logger.Debug().Str("path", path).Msg("wrote tvshow.nfo")
	return true, nil
}

// WriteSeasonNFO writes season.nfo into dir unless one already exists.
// Returns true when a file was written.
func (w *Writer) WriteSeasonNFO(dir string, season *tmdb.Season, opts config.MetadataSettings) (bool, error) {
	path := filepath.Join(dir, "season.nfo")
	if _, err := os.Stat(path); err == nil {
		w.logger.Debug().Str("path", path).Msg("season.nfo exists, skipping")
		return false, nil
	}

	doc := xmlSeason{
		SeasonNumber: fmt.Sprintf("%d", season.SeasonNumber),
		Premiered:    season.AirDate,
	}
	if opts.ScrapeTitle {
		doc.Title = season.Name
	}
	if opts.ScrapePlot {
		doc.Plot = season.Overview
	}

	if err := writeNFOFile(path, doc); err != nil {
		return false, err
	}
	w.logger.Debug().Str("path", path).Msg("wrote season.nfo")
	return true, nil
}

// WriteEpisodeNFO writes the episode sidecar next to videoPath, named
// after its stem. An existing file is rewritten.
func (w *Writer) WriteEpisodeNFO(videoPath string, series *tmdb.Series, episode *tmdb.Episode, opts config.MetadataSettings) error {
	stem := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	path := stem + ".nfo"

	doc := xmlEpisode{
		ShowTitle: series.Name,
		Season:    fmt.Sprintf("%d", episode.SeasonNumber),
		Episode:   fmt.Sprintf("%d", episode.EpisodeNumber),
		Aired:     episode.AirDate,
		UniqueIDs: []xmlUniqueID{
			{Type: "tmdb", Default: "true", Value: fmt.Sprintf("%d", episode.ID)},
		},
	}
	if episode.Runtime > 0 {
		doc.Runtime = fmt.Sprintf("%d", episode.Runtime)
	}
	if opts.ScrapeTitle {
		doc.Title = episode.Name
	}
	if opts.ScrapePlot {
		doc.Plot = episode.Overview
	}

	if err := writeNFOFile(path, doc); err != nil {
		return err
	}
	w.logger.Debug().Str("path", path).Msg("wrote episode nfo")
	return nil
}

// writeNFOFile marshals v with the XML declaration and writes it via a
// temp file so readers never see a half-written document.
func writeNFOFile(path string, v interface{}) error {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal NFO: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	output = append(output, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create NFO directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, output, 0644); err != nil {
		return fmt.Errorf("failed to write NFO file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize NFO file: %w", err)
	}

	return nil
}
