package organizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Templates use {variable} tokens with an optional zero-pad format,
// e.g. "{title} - S{season:02d}E{episode:02d} - {episode_title}".
var (
	variablePattern  = regexp.MustCompile(`\{(\w+)(?::([^}]+))?\}`)
	formatSpec       = regexp.MustCompile(`^0?\d*d$`)
	invalidChars     = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	emptyParens      = regexp.MustCompile(`\s*\(\s*\)`)
	emptyTMDBTag     = regexp.MustCompile(`\s*\[tmdbid-\]`)
	emptyBrackets    = regexp.MustCompile(`\s*\[\s*\]`)
)

// templateVariables are the tokens a naming template may reference.
var templateVariables = map[string]bool{
	"title":          true,
	"original_title": true,
	"year":           true,
	"season":         true,
	"episode":        true,
	"episode_title":  true,
	"air_date":       true,
	"tmdb_id":        true,
}

// Values carries the scraped metadata a template renders from.
type Values struct {
	Title         string
	OriginalTitle string
	Year          int
	Season        int
	Episode       int
	EpisodeTitle  string
	AirDate       string
	TMDBID        int
}

// Render substitutes template tokens from values. Unknown tokens
// render empty; Validate rejects them up front.
func Render(template string, values Values) string {
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := variablePattern.FindStringSubmatch(match)
		name, format := sub[1], sub[2]

		switch name {
		case "title":
			return values.Title
		case "original_title":
			return values.OriginalTitle
		case "year":
			return formatInt(values.Year, format)
		case "season":
			return formatInt(values.Season, format)
		case "episode":
			return formatInt(values.Episode, format)
		case "episode_title":
			return values.EpisodeTitle
		case "air_date":
			return values.AirDate
		case "tmdb_id":
			return formatInt(values.TMDBID, format)
		}
		return ""
	})
}

// RenderName renders a template and sanitizes the result into a safe
// file or folder name.
func RenderName(template string, values Values) string {
	return Sanitize(Render(template, values))
}

// Validate checks a naming template for unbalanced braces, unknown
// variables and bad format specs.
func Validate(template string) error {
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("template is empty")
	}

	depth := 0
	for _, r := range template {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return fmt.Errorf("nested braces in template")
			}
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced braces in template")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced braces in template")
	}

	for _, match := range variablePattern.FindAllStringSubmatch(template, -1) {
		name, format := match[1], match[2]
		if !templateVariables[name] {
			return fmt.Errorf("unknown template variable %q", name)
		}
		if format != "" && !formatSpec.MatchString(format) {
			return fmt.Errorf("invalid format spec %q for variable %q", format, name)
		}
	}

	return nil
}

// PreviewTemplate renders a template with sample data for display.
func PreviewTemplate(template string) (string, error) {
	if err := Validate(template); err != nil {
		return "", err
	}
	sample := Values{
		Title:         "Sample Series",
		OriginalTitle: "Sample Series",
		Year:          2023,
		Season:        1,
		Episode:       5,
		EpisodeTitle:  "Sample Episode",
		AirDate:       "2023-10-06",
		TMDBID:        209867,
	}
	return RenderName(template, sample), nil
}

// Sanitize strips characters invalid in file names, collapses
// whitespace, and drops remnants left by empty variables such as
// " ()" or " [tmdbid-]".
func Sanitize(name string) string {
	name = invalidChars.ReplaceAllString(name, "")
	name = emptyParens.ReplaceAllString(name, "")
	name = emptyTMDBTag.ReplaceAllString(name, "")
	name = emptyBrackets.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	return name
}

// formatInt applies a python-style d format spec, e.g. "02d".
func formatInt(n int, format string) string {
	if n == 0 && format == "" {
		return ""
	}
	if format == "" {
		return strconv.Itoa(n)
	}
	width := 0
	if spec := strings.TrimSuffix(format, "d"); spec != "" {
		width, _ = strconv.Atoi(spec)
	}
	return fmt.Sprintf("%0*d", width, n)
}
