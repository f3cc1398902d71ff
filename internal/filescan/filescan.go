// Package filescan discovers video files for scrape jobs and guards
// against scanning paths that should never be touched.
package filescan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrBlockedPath = errors.New("path is not allowed")
	ErrNotFound    = errors.New("path does not exist")
)

// VideoExtensions are the container formats treated as video.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpg": true, ".mpeg": true, ".ts": true, ".m2ts": true,
	".rmvb": true, ".rm": true, ".asf": true, ".iso": true, ".bdmv": true,
}

// blockedUnixPrefixes are system roots a job path may never point at.
var blockedUnixPrefixes = []string{
	"/etc", "/var", "/usr", "/bin", "/sbin", "/boot", "/root", "/proc", "/sys",
}

var blockedWindowsPrefixes = []string{
	`C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`,
}

// Service walks directories for video files.
type Service struct {
	logger zerolog.Logger
}

// NewService creates a file scanner.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("component", "filescan").Logger(),
	}
}

// ValidatePath rejects traversal tricks and system directories.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrBlockedPath)
	}
	for _, bad := range []string{"..", "~", "\x00"} {
		if strings.Contains(path, bad) {
			return fmt.Errorf("%w: %q", ErrBlockedPath, path)
		}
	}

	cleaned := filepath.Clean(path)
	prefixes := blockedUnixPrefixes
	if runtime.GOOS == "windows" {
		prefixes = blockedWindowsPrefixes
	}
	for _, prefix := range prefixes {
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+string(filepath.Separator)) {
			return fmt.Errorf("%w: %q is a system directory", ErrBlockedPath, path)
		}
	}

	return nil
}

// IsVideoFile reports whether path has a video extension.
func IsVideoFile(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// ScanPath resolves a job path into the video files it covers: the
// file itself, or every video found under a directory.
func (s *Service) ScanPath(path string, minSizeMB int) ([]string, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if !info.IsDir() {
		if !IsVideoFile(path) {
			return nil, nil
		}
		return []string{path}, nil
	}

	return s.scanDir(path, minSizeMB)
}

// scanDir walks root collecting video files, skipping hidden entries
// and files under the size threshold.
func (s *Service) scanDir(root string, minSizeMB int) ([]string, error) {
	minBytes := int64(minSizeMB) * 1024 * 1024

	var videos []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn().Err(walkErr).Str("path", path).Msg("scan error, skipping")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !IsVideoFile(path) {
			return nil
		}

		if minBytes > 0 {
			if info, err := d.Info(); err == nil && info.Size() < minBytes {
				s.logger.Debug().Str("path", path).Msg("below size threshold, skipping")
				return nil
			}
		}

		videos = append(videos, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.Strings(videos)
	s.logger.Debug().Str("root", root).Int("videos", len(videos)).Msg("scan completed")
	return videos, nil
}
