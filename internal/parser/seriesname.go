package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	volumePattern = regexp.MustCompile(`(下[巻卷]|上[巻卷]|前[編篇]|後[編篇]|完結[編篇]|第[〇零一二三四五六七八九十百千\d]+[巻話編章]|[Vv]ol\.?\s*\d+)`)
	volumeNumberPattern = regexp.MustCompile(`第([〇零一二三四五六七八九十百千\d]+)[巻卷]|[Vv]ol\.?\s*(\d+)`)
	ovaPrefixPattern    = regexp.MustCompile(`(?i)^(?:OVA|OAD|ONA)\s+`)
	trailingIndexPattern = regexp.MustCompile(`\s+\d+\s*$`)
	nameYearPattern      = regexp.MustCompile(`[\[(]?((?:19|20)\d{2})[\])]?\s*$`)
)

// episodeMarkers are the points at which a series title ends. The
// earliest match across all of them truncates the name candidate.
var episodeMarkers = []*regexp.Regexp{
	sxxEyyPattern,
	epMarkerPattern,
	bracketNumPattern,
	jpEpisodePattern,
	jpEpisodeKanjiPattern,
	jpSonoPattern,
	jpHashPattern,
	cnEpisodePattern,
	cnEpisodeHanziPattern,
	volumePattern,
}

var removeSuffixes = []string{
	"the animation",
	"the movie",
}

// seriesNamePlugin derives the series title from the cleaned stem by
// cutting at the first episode or volume marker. A volume marker also
// implies an episode when none was parsed: 上/前 is part one, 下/後 is
// part two, Vol.N is episode N.
type seriesNamePlugin struct{}

func (p *seriesNamePlugin) Name() string           { return "series_name" }
func (p *seriesNamePlugin) Priority() int          { return 50 }
func (p *seriesNamePlugin) Skip(ctx *Context) bool { return false }

func (p *seriesNamePlugin) Parse(ctx *Context) error {
	stem := ctx.Stem()

	if ctx.Episode == nil {
		if n, ok := impliedVolumeEpisode(stem); ok {
			ctx.Episode = intPtr(n)
		}
	}

	if ctx.SeriesName != nil {
		// Folder-derived names are authoritative.
		return nil
	}

	name := stem
	if idx := earliestMarker(name); idx >= 0 {
		name = name[:idx]
	}

	name = ovaPrefixPattern.ReplaceAllString(name, "")

	if m := nameYearPattern.FindStringSubmatch(strings.TrimSpace(name)); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year >= 1950 && year <= 2030 {
			if ctx.Year == nil {
				ctx.Year = intPtr(year)
			}
			trimmed := strings.TrimSpace(name)
			name = trimmed[:len(trimmed)-len(m[0])]
		}
	}

	name = trailingIndexPattern.ReplaceAllString(name, "")

	// Dot- or underscore-separated names read better with spaces.
	if !strings.Contains(name, " ") && strings.ContainsAny(name, "._") {
		name = strings.NewReplacer(".", " ", "_", " ").Replace(name)
	}

	name = strings.Trim(name, "-_. []()【】")
	name = strings.TrimSpace(multiSpacePattern.ReplaceAllString(name, " "))

	lower := strings.ToLower(name)
	for _, suffix := range removeSuffixes {
		if strings.HasSuffix(lower, suffix) {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
			lower = strings.ToLower(name)
		}
	}

	if len([]rune(name)) >= 2 {
		ctx.SeriesName = strPtr(name)
	}

	return nil
}

// earliestMarker returns the index of the first episode marker in s,
// or -1 when none match.
func earliestMarker(s string) int {
	best := -1
	for _, re := range episodeMarkers {
		if loc := re.FindStringIndex(s); loc != nil {
			if best == -1 || loc[0] < best {
				best = loc[0]
			}
		}
	}
	return best
}

// impliedVolumeEpisode maps volume markers to episode numbers for
// two-part releases and numbered volumes.
func impliedVolumeEpisode(s string) (int, bool) {
	if m := volumeNumberPattern.FindStringSubmatch(s); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if n, err := strconv.Atoi(raw); err == nil {
			return n, true
		}
		if n, ok := parseCJKNumeral(raw); ok {
			return n, true
		}
	}

	switch {
	case strings.Contains(s, "上巻"), strings.Contains(s, "上卷"),
		strings.Contains(s, "前編"), strings.Contains(s, "前篇"):
		return 1, true
	case strings.Contains(s, "下巻"), strings.Contains(s, "下卷"),
		strings.Contains(s, "後編"), strings.Contains(s, "後篇"):
		return 2, true
	}

	return 0, false
}
