// Package organizer renders naming templates and places scraped media
// files into the library using the configured link mode.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
)

var (
	ErrSourceMissing     = errors.New("source file not found")
	ErrDestinationExists = errors.New("destination file already exists")
	ErrHardlinkFailed    = errors.New("failed to create hardlink")
	ErrSymlinkFailed     = errors.New("failed to create symlink")
	ErrCrossDevice       = errors.New("cross-device link not supported")
)

// LinkMode selects how a file reaches its destination. The numeric
// values are stored in job rows, so they are part of the schema.
type LinkMode int

const (
	ModeHardlink LinkMode = 1
	ModeMove     LinkMode = 2
	ModeCopy     LinkMode = 3
	ModeSymlink  LinkMode = 4
	ModeInPlace  LinkMode = 5
)

// String returns the mode name.
func (m LinkMode) String() string {
	switch m {
	case ModeHardlink:
		return "hardlink"
	case ModeMove:
		return "move"
	case ModeCopy:
		return "copy"
	case ModeSymlink:
		return "symlink"
	case ModeInPlace:
		return "inplace"
	default:
		return fmt.Sprintf("linkmode(%d)", int(m))
	}
}

// Valid reports whether m is a known link mode.
func (m LinkMode) Valid() bool {
	return m >= ModeHardlink && m <= ModeInPlace
}

var seasonDirPattern = regexp.MustCompile(`^[Ss]eason\s*\d+$|^[Ss]\d{1,2}$`)

// Request describes one placement.
type Request struct {
	SourcePath        string
	LibraryDir        string
	MetadataDir       string // optional mirror for NFO and artwork
	Mode              LinkMode
	DeleteEmptyParent bool // sweep emptied source folders after a move
	Templates         config.NamingSettings
	Values            Values
}

// Preview is a placement plan: everything Execute would do, computed
// without touching the filesystem.
type Preview struct {
	SeriesFolder string   `json:"series_folder"`
	SeasonFolder string   `json:"season_folder"`
	Filename     string   `json:"filename"`
	DestPath     string   `json:"dest_path"`
	MetadataPath string   `json:"metadata_path,omitempty"`
	CreateDirs   []string `json:"create_dirs,omitempty"`
}

// Service places files.
type Service struct {
	logger zerolog.Logger
}

// NewService creates an organizer service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("component", "organizer").Logger(),
	}
}

// Preview computes the destination layout for a request.
func (s *Service) Preview(req Request) (*Preview, error) {
	seriesFolder := RenderName(req.Templates.SeriesFolder, req.Values)
	seasonFolder := RenderName(req.Templates.SeasonFolder, req.Values)
	filename := RenderName(req.Templates.EpisodeFile, req.Values) + strings.ToLower(filepath.Ext(req.SourcePath))

	if seriesFolder == "" || filename == "" {
		return nil, fmt.Errorf("naming templates rendered empty names")
	}

	root := req.LibraryDir
	if req.Mode == ModeInPlace {
		root = resolveInPlaceRoot(req.SourcePath)
	}
	if root == "" {
		return nil, fmt.Errorf("no library directory configured")
	}

	destDir := filepath.Join(root, seriesFolder, seasonFolder)
	preview := &Preview{
		SeriesFolder: seriesFolder,
		SeasonFolder: seasonFolder,
		Filename:     filename,
		DestPath:     filepath.Join(destDir, filename),
		CreateDirs:   missingDirs(destDir),
	}

	if req.MetadataDir != "" {
		preview.MetadataPath = filepath.Join(req.MetadataDir, seriesFolder, seasonFolder)
	}

	return preview, nil
}

// Execute places the source file according to the request and returns
// the final path.
func (s *Service) Execute(req Request) (string, error) {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, req.SourcePath)
	}

	preview, err := s.Preview(req)
	if err != nil {
		return "", err
	}
	dest := preview.DestPath

	if sameFile(req.SourcePath, dest) {
		s.logger.Debug().Str("path", dest).Msg("file already in place")
		return dest, nil
	}

	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}

	if err := s.ensureDestDir(dest); err != nil {
		return "", err
	}

	switch req.Mode {
	case ModeMove, ModeInPlace:
		err = s.moveFile(req.SourcePath, dest)
	case ModeCopy:
		err = s.copyFile(req.SourcePath, dest)
	case ModeHardlink:
		err = s.createHardlink(req.SourcePath, dest)
	case ModeSymlink:
		err = s.createSymlink(req.SourcePath, dest)
	default:
		err = fmt.Errorf("unsupported link mode %d", req.Mode)
	}
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("source", req.SourcePath).
		Str("dest", dest).
		Str("mode", req.Mode.String()).
		Msg("placed file")

	if req.Mode == ModeMove && req.DeleteEmptyParent {
		s.cleanEmptyParents(filepath.Dir(req.SourcePath))
	}

	return dest, nil
}

// moveFile renames, falling back to copy + delete across filesystems.
func (s *Service) moveFile(sourcePath, destPath string) error {
	if err := os.Rename(sourcePath, destPath); err == nil {
		return nil
	}

	if err := s.copyFile(sourcePath, destPath); err != nil {
		return err
	}

	if err := os.Remove(sourcePath); err != nil {
		s.logger.Warn().Err(err).Str("path", sourcePath).Msg("failed to remove source file after copy")
	}
	return nil
}

func (s *Service) copyFile(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to copy file: %w", err)
	}

	if sourceInfo, err := os.Stat(sourcePath); err == nil {
		if err := os.Chmod(destPath, sourceInfo.Mode()); err != nil {
			s.logger.Warn().Err(err).Str("path", destPath).Msg("failed to set file permissions")
		}
	}

	return nil
}

// createHardlink links source to dest.
// Returns ErrCrossDevice wrapped when the filesystems differ.
func (s *Service) createHardlink(source, dest string) error {
	if err := os.Link(source, dest); err != nil {
		if isCrossDeviceError(err) {
			return fmt.Errorf("%w: %w", ErrCrossDevice, err)
		}
		return fmt.Errorf("%w: %w", ErrHardlinkFailed, err)
	}
	return nil
}

func (s *Service) createSymlink(source, dest string) error {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve source path: %w", ErrSymlinkFailed, err)
	}
	if err := os.Symlink(absSource, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrSymlinkFailed, err)
	}
	return nil
}

// PlaceCompanion puts a companion file (subtitle, artwork) next to an
// already placed video with the same mode semantics. Existing
// destinations are overwritten.
func (s *Service) PlaceCompanion(sourcePath, destPath string, mode LinkMode) error {
	if sameFile(sourcePath, destPath) {
		return nil
	}
	if err := s.ensureDestDir(destPath); err != nil {
		return err
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace existing file: %w", err)
	}

	switch mode {
	case ModeCopy, ModeHardlink, ModeSymlink:
		// Source stays behind for non-move modes.
		return s.copyFile(sourcePath, destPath)
	default:
		return s.moveFile(sourcePath, destPath)
	}
}

// ensureDestDir creates the destination directory if needed,
// inheriting permissions from the nearest existing ancestor.
func (s *Service) ensureDestDir(destPath string) error {
	destDir := filepath.Dir(destPath)

	info, err := os.Stat(destDir)
	if err == nil && info.IsDir() {
		return nil
	}

	perm := os.FileMode(0o755)
	for dir := filepath.Dir(destDir); ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(dir); err == nil {
			perm = info.Mode().Perm()
			break
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	if err := os.MkdirAll(destDir, perm); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	return nil
}

// cleanEmptyParents removes dir and up to one parent while they are
// empty. Climbing further would start eating watch roots.
func (s *Service) cleanEmptyParents(dir string) {
	for i := 0; i < 2; i++ {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		s.logger.Debug().Str("path", dir).Msg("removed empty folder")
		dir = filepath.Dir(dir)
	}
}

// CleanEmptyFolders removes empty folders in a directory tree.
func (s *Service) CleanEmptyFolders(rootPath string) error {
	return filepath.WalkDir(rootPath, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() || path == rootPath {
			return nil
		}
		entries, readErr := os.ReadDir(path)
		if readErr != nil {
			return nil
		}
		if len(entries) == 0 {
			if err := os.Remove(path); err == nil {
				s.logger.Debug().Str("path", path).Msg("removed empty folder")
			}
		}
		return nil
	})
}

// resolveInPlaceRoot finds the library root implied by a file that is
// already inside a series layout: a "Season N" parent puts the root
// three levels up, otherwise two.
func resolveInPlaceRoot(sourcePath string) string {
	parent := filepath.Dir(sourcePath)
	if seasonDirPattern.MatchString(filepath.Base(parent)) {
		return filepath.Dir(filepath.Dir(parent))
	}
	return filepath.Dir(parent)
}

// missingDirs lists the directories MkdirAll would create for dir,
// deepest last.
func missingDirs(dir string) []string {
	var missing []string
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		missing = append([]string{dir}, missing...)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return missing
}

// sameFile reports whether two paths name the same file.
func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err1 := os.Stat(a)
	bi, err2 := os.Stat(b)
	return err1 == nil && err2 == nil && os.SameFile(ai, bi)
}

// isCrossDeviceError checks if an error is a cross-device link error.
func isCrossDeviceError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	switch runtime.GOOS {
	case "linux", "darwin":
		return strings.Contains(errStr, "cross-device") ||
			strings.Contains(errStr, "invalid cross-device link")
	case "windows":
		return strings.Contains(errStr, "not on the same disk")
	default:
		return strings.Contains(errStr, "cross-device")
	}
}
