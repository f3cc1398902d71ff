// Package subtitle finds companion subtitle files for a video and
// renames them to follow the placed video.
package subtitle

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/organizer"
)

// Extensions recognized as subtitle files.
var Extensions = map[string]bool{
	".srt": true, ".ass": true, ".ssa": true, ".sub": true,
	".idx": true, ".vtt": true, ".sup": true,
}

// descriptorTags are dot-parts that describe a subtitle variant
// rather than its language.
var descriptorTags = map[string]bool{
	"assfonts": true, "fonts": true, "hi": true, "forced": true,
	"sdh": true, "cc": true, "default": true, "full": true,
	"signs": true, "songs": true, "commentary": true,
}

// languageAliases maps tag spellings to a canonical language code.
var languageAliases = map[string]string{
	"chs": "chs", "sc": "chs", "gb": "chs", "zhs": "chs",
	"zh-hans": "chs", "zh-cn": "chs", "zh_cn": "chs", "simp": "chs",
	"cht": "cht", "tc": "cht", "big5": "cht", "zht": "cht",
	"zh-hant": "cht", "zh-tw": "cht", "zh_tw": "cht", "trad": "cht",
	"en": "eng", "eng": "eng", "english": "eng",
	"ja": "jpn", "jp": "jpn", "jpn": "jpn", "japanese": "jpn",
	"ko": "kor", "kor": "kor", "korean": "kor",
}

var (
	separatorRun = regexp.MustCompile(`[\s\._-]+`)
	episodeCode  = regexp.MustCompile(`[Ss](\d{1,2})[Ee](\d{1,3})`)
)

// File is a discovered subtitle.
type File struct {
	Path     string   `json:"path"`
	Base     string   `json:"base"`     // stem with language/descriptor tags removed
	Language string   `json:"language"` // canonical code, empty when untagged
	Tags     []string `json:"tags"`     // raw trailing tags in original order
}

// Service matches and places subtitles.
type Service struct {
	organizer *organizer.Service
	logger    zerolog.Logger
}

// NewService creates a subtitle service.
func NewService(org *organizer.Service, logger zerolog.Logger) *Service {
	return &Service{
		organizer: org,
		logger:    logger.With().Str("component", "subtitle").Logger(),
	}
}

// Inspect splits a subtitle filename into base name, raw trailing
// tags and the canonical language.
func Inspect(path string) File {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	parts := strings.Split(stem, ".")
	language := ""
	var tags []string

	for len(parts) > 1 {
		last := strings.ToLower(parts[len(parts)-1])
		if canonical, ok := languageAliases[last]; ok {
			language = canonical
			tags = append([]string{parts[len(parts)-1]}, tags...)
			parts = parts[:len(parts)-1]
			continue
		}
		if descriptorTags[last] {
			tags = append([]string{parts[len(parts)-1]}, tags...)
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}

	return File{
		Path:     path,
		Base:     strings.Join(parts, "."),
		Language: language,
		Tags:     tags,
	}
}

// ScanDir lists subtitle files directly inside dir.
func (s *Service) ScanDir(dir string) []File {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Debug().Err(err).Str("dir", dir).Msg("subtitle scan failed")
		return nil
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !Extensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, Inspect(filepath.Join(dir, entry.Name())))
	}
	return files
}

// Match returns the subtitles belonging to a video, identified by its
// original stem or by a shared season/episode code.
func (s *Service) Match(files []File, videoStem string, season, episode *int) []File {
	var matches []File
	for _, f := range files {
		if namesMatch(f.Base, videoStem) {
			matches = append(matches, f)
			continue
		}
		if season != nil && episode != nil && episodeCodeMatches(f.Base, *season, *episode) {
			matches = append(matches, f)
		}
	}
	return matches
}

// Place moves or copies a matched subtitle next to the placed video,
// renaming it to the video's stem while keeping its tags.
func (s *Service) Place(f File, destDir, destStem string, mode organizer.LinkMode) (string, error) {
	name := destStem
	if len(f.Tags) > 0 {
		name += "." + strings.Join(f.Tags, ".")
	}
	name += strings.ToLower(filepath.Ext(f.Path))

	dest := filepath.Join(destDir, name)
	if err := s.organizer.PlaceCompanion(f.Path, dest, mode); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("source", f.Path).
		Str("dest", dest).
		Msg("placed subtitle")
	return dest, nil
}

// namesMatch compares a subtitle base name to a video stem: exact,
// separator-insensitive, then by shared episode code.
func namesMatch(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return true
	}
	return separatorRun.ReplaceAllString(la, "") == separatorRun.ReplaceAllString(lb, "")
}

// episodeCodeMatches reports whether name carries the given SxxEyy code.
func episodeCodeMatches(name string, season, episode int) bool {
	m := episodeCode.FindStringSubmatch(name)
	if m == nil {
		return false
	}
	return atoiSafe(m[1]) == season && atoiSafe(m[2]) == episode
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
