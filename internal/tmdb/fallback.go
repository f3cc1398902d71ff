package tmdb

import (
	"regexp"
	"strings"
)

// Fallback query rewrites for titles that fail a literal search.
// Release names often decorate titles with circle marks, bracketed
// group tags, volume markers or trailing indexes that the upstream
// index does not know about.
var (
	circleMarksPattern    = regexp.MustCompile(`[〇○]+`)
	bracketSegmentPattern = regexp.MustCompile(`[\[【（(][^\]】）)]*[\]】）)]`)
	leadingCirclePattern  = regexp.MustCompile(`^[〇○]+[ぁ-ん]*`)
	volumeMarkerPattern   = regexp.MustCompile(`(下[巻卷]|上[巻卷]|前[編篇]|後[編篇]|完結[編篇]|第[一二三四五六七八九十百千\d]+[巻話編章]|[Vv]ol\.?\s*\d+)`)
	leadingOVAPattern     = regexp.MustCompile(`(?i)^(?:OVA|OAD|ONA)\s+`)
	trailingIndexQuery    = regexp.MustCompile(`\s+\d+\s*$`)
	collapseSpaces        = regexp.MustCompile(`\s+`)
)

// fallbackQueries generates relaxed variants of a failed query, in
// priority order, deduplicated, with the original and anything under
// two characters dropped.
func fallbackQueries(query string) []string {
	strip := func(re *regexp.Regexp, repl string) func(string) string {
		return func(s string) string { return re.ReplaceAllString(s, repl) }
	}

	circles := strip(circleMarksPattern, "")
	brackets := strip(bracketSegmentPattern, " ")
	leadingCircle := strip(leadingCirclePattern, "")
	volumes := strip(volumeMarkerPattern, " ")
	ova := strip(leadingOVAPattern, "")
	trailing := strip(trailingIndexQuery, "")

	strategies := []func(string) string{
		circles,
		brackets,
		func(s string) string { return brackets(circles(s)) },
		leadingCircle,
		volumes,
		func(s string) string { return volumes(brackets(circles(s))) },
		ova,
		trailing,
		func(s string) string { return trailing(ova(s)) },
	}

	seen := map[string]bool{query: true}
	var candidates []string
	for _, apply := range strategies {
		candidate := strings.TrimSpace(collapseSpaces.ReplaceAllString(apply(query), " "))
		if len([]rune(candidate)) < 2 || seen[candidate] {
			continue
		}
		seen[candidate] = true
		candidates = append(candidates, candidate)
	}
	return candidates
}
