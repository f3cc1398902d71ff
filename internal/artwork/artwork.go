// Package artwork downloads poster, backdrop and episode still images
// into the scraped series folders.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

var (
	ErrInvalidURL     = errors.New("invalid artwork URL")
	ErrDownloadFailed = errors.New("artwork download failed")
)

// ImageSource resolves TMDB image paths into full URLs.
type ImageSource interface {
	ImageURL(path, size string) string
}

// Downloader fetches images next to placed media files.
type Downloader struct {
	source     ImageSource
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewDownloader creates an artwork downloader.
func NewDownloader(source ImageSource, logger zerolog.Logger) *Downloader {
	return &Downloader{
		source: source,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With().Str("component", "artwork").Logger(),
	}
}

// DownloadSeriesImages writes poster.jpg and backdrop.jpg into the
// series folder, honoring the download toggles. Existing files are
// kept. Failures are logged, not fatal.
func (d *Downloader) DownloadSeriesImages(ctx context.Context, seriesDir string, series *tmdb.Series, opts config.DownloadSettings) {
	if opts.Poster && series.PosterPath != "" {
		d.downloadIfAbsent(ctx, series.PosterPath, filepath.Join(seriesDir, "poster.jpg"))
	}
	if opts.Backdrop && series.BackdropPath != "" {
		d.downloadIfAbsent(ctx, series.BackdropPath, filepath.Join(seriesDir, "backdrop.jpg"))
	}
}

// DownloadSeasonPoster writes poster.jpg into the season folder.
func (d *Downloader) DownloadSeasonPoster(ctx context.Context, seasonDir string, season *tmdb.Season, opts config.DownloadSettings) {
	if !opts.Poster || season.PosterPath == "" {
		return
	}
	d.downloadIfAbsent(ctx, season.PosterPath, filepath.Join(seasonDir, "poster.jpg"))
}

// DownloadEpisodeStill writes the episode thumbnail beside the video,
// named after its stem.
func (d *Downloader) DownloadEpisodeStill(ctx context.Context, videoPath string, episode *tmdb.Episode, opts config.DownloadSettings) {
	if !opts.Thumb || episode.StillPath == "" {
		return
	}
	stem := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	d.downloadIfAbsent(ctx, episode.StillPath, stem+".jpg")
}

// downloadIfAbsent fetches an image unless the destination exists.
func (d *Downloader) downloadIfAbsent(ctx context.Context, imagePath, dest string) {
	if _, err := os.Stat(dest); err == nil {
		d.logger.Debug().Str("path", dest).Msg("image exists, skipping")
		return
	}
	if err := d.download(ctx, d.source.ImageURL(imagePath, "original"), dest); err != nil {
		d.logger.Warn().Err(err).Str("path", dest).Msg("image download failed")
	}
}

// download fetches url into dest, removing partial files on failure.
func (d *Downloader) download(ctx context.Context, url, dest string) error {
	if url == "" {
		return ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to write file: %w", err)
	}

	d.logger.Debug().
		Str("url", url).
		Str("path", dest).
		Int64("bytes", written).
		Msg("downloaded image")
	return nil
}
