package parser

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	leadingGroupPattern = regexp.MustCompile(`^\s*(?:\[[^\[\]]*\]|【[^【】]*】)\s*`)
	websitePattern      = regexp.MustCompile(`(?i)^(?:www\.)?[a-z0-9][a-z0-9-]*\.(?:com|net|org|tv|me|cc|la|io)\s*[-_@]*\s*`)
	techTagPattern      = regexp.MustCompile(`(?i)[\[(（【][^\])）】]*(?:\d{3,4}p|[hx]\.?26[45]|hevc|avc|aac|flac|opus|web-?(?:dl|rip)|blu-?ray|bdrip|hdtv|\d{1,2}bit)[^\])）】]*[\])）】]`)
	multiSpacePattern   = regexp.MustCompile(`\s{2,}`)
)

// cleanerPlugin strips release-group brackets and site prefixes from
// the filename stem. It never sets parse fields; later plugins read
// the cleaned stem instead of the raw one.
type cleanerPlugin struct{}

func (p *cleanerPlugin) Name() string          { return "cleaner" }
func (p *cleanerPlugin) Priority() int         { return 10 }
func (p *cleanerPlugin) Skip(ctx *Context) bool { return ctx.Filename == "" }

func (p *cleanerPlugin) Parse(ctx *Context) error {
	stem := strings.TrimSuffix(ctx.Filename, filepath.Ext(ctx.Filename))

	stem = websitePattern.ReplaceAllString(stem, "")

	// Strip one leading bracket group (the release group). Further
	// brackets may hold the title or the episode index.
	if stripped := leadingGroupPattern.ReplaceAllString(stem, ""); strings.TrimSpace(stripped) != "" {
		stem = stripped
	}

	stem = techTagPattern.ReplaceAllString(stem, " ")
	stem = multiSpacePattern.ReplaceAllString(stem, " ")
	ctx.CleanedFilename = strings.TrimSpace(stem)
	return nil
}
