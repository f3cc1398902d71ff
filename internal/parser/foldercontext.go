package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	seasonFolderPattern  = regexp.MustCompile(`^[Ss]eason\s*\d+$|^[Ss]\d{1,2}$`)
	folderYearPattern    = regexp.MustCompile(`[\[(]((?:19|20)\d{2})[\])]`)
	folderTMDBIDPattern  = regexp.MustCompile(`(?i)\[tmdb(?:id)?[-:](\d+)\]`)
	bracketGroupPattern  = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|【[^】]*】`)
	folderEpisodePattern = regexp.MustCompile(`\s+[＃#♯]?(\d{1,3})\s*$`)
	digitsPattern        = regexp.MustCompile(`\d+`)
)

// folderContextPlugin reads season and series hints from the directory
// layout: an enclosing "Season N" folder names the season, and the
// folder above it names the series, possibly carrying a year, an
// explicit tmdb id tag, release-group brackets or a volume marker.
type folderContextPlugin struct{}

func (p *folderContextPlugin) Name() string  { return "folder_context" }
func (p *folderContextPlugin) Priority() int { return 5 }

func (p *folderContextPlugin) Skip(ctx *Context) bool {
	dir := filepath.Dir(ctx.Filepath)
	return dir == "." || dir == "" || isFSRoot(dir)
}

func (p *folderContextPlugin) Parse(ctx *Context) error {
	dir := filepath.Dir(ctx.Filepath)

	seriesDir := dir
	if seasonFolderPattern.MatchString(filepath.Base(dir)) {
		if ctx.Season == nil {
			if m := digitsPattern.FindString(filepath.Base(dir)); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					ctx.Season = intPtr(n)
				}
			}
		}
		seriesDir = filepath.Dir(dir)
	}

	if seriesDir == "." || isFSRoot(seriesDir) {
		return nil
	}
	// A folder directly under the filesystem root is a mount or share
	// name, not a series title.
	if isFSRoot(filepath.Dir(seriesDir)) {
		return nil
	}

	name := filepath.Base(seriesDir)

	if m := folderTMDBIDPattern.FindStringSubmatch(name); m != nil {
		if ctx.TMDBID == nil {
			if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
				ctx.TMDBID = intPtr(id)
			}
		}
		name = strings.Replace(name, m[0], "", 1)
	}

	if m := folderYearPattern.FindStringSubmatch(name); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year >= 1950 && year <= 2030 {
			if ctx.Year == nil {
				ctx.Year = intPtr(year)
			}
			name = strings.Replace(name, m[0], "", 1)
		}
	}

	// A folder volume marker places a two-part or numbered release
	// when the filename itself carried no episode.
	if ctx.Episode == nil {
		if n, ok := impliedVolumeEpisode(name); ok {
			ctx.Episode = intPtr(n)
		}
	}

	// Release-group brackets and volume markers are packaging, not
	// title.
	name = bracketGroupPattern.ReplaceAllString(name, " ")
	name = volumePattern.ReplaceAllString(name, " ")
	name = strings.TrimSpace(multiSpacePattern.ReplaceAllString(name, " "))

	if ctx.Episode == nil {
		if m := folderEpisodePattern.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				ctx.Episode = intPtr(n)
				name = name[:len(name)-len(m[0])]
			}
		}
	}

	name = strings.Trim(strings.TrimSpace(name), "-_. ")
	if len([]rune(name)) >= 2 && ctx.SeriesName == nil {
		ctx.SeriesName = strPtr(name)
		ctx.Metadata["folder_context:series_name"] = name
	}

	return nil
}

// isFSRoot reports whether path is a filesystem root such as "/" or "C:\".
func isFSRoot(path string) bool {
	if path == "/" || path == "" {
		return true
	}
	cleaned := filepath.Clean(path)
	return cleaned == string(filepath.Separator) || cleaned == filepath.VolumeName(cleaned)+string(filepath.Separator)
}
