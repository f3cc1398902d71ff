package parser

import (
	"regexp"
	"strconv"
)

var (
	sxxEyyPattern     = regexp.MustCompile(`[.\s_-]?[Ss](\d{1,2})[.\s_-]?[Ee](\d{1,3})`)
	epMarkerPattern   = regexp.MustCompile(`[.\s_-][Ee][Pp]?(\d{1,3})(?:[.\s_-]|$)`)
	bracketNumPattern = regexp.MustCompile(`\[(\d{1,3})\]`)
	trailingNumPattern = regexp.MustCompile(`[.\s_-](\d{1,3})[.\s_-]?(?:\[|$)`)
)

// standardEpisodePlugin handles western numbering: S01E02, EP03, E04,
// a bracketed index like [05], or a bare trailing number.
type standardEpisodePlugin struct{}

func (p *standardEpisodePlugin) Name() string           { return "episode_standard" }
func (p *standardEpisodePlugin) Priority() int          { return 20 }
func (p *standardEpisodePlugin) Skip(ctx *Context) bool { return ctx.Episode != nil }

func (p *standardEpisodePlugin) Parse(ctx *Context) error {
	stem := ctx.Stem()

	if m := sxxEyyPattern.FindStringSubmatch(stem); m != nil {
		if ctx.Season == nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				ctx.Season = intPtr(n)
			}
		}
		if n, err := strconv.Atoi(m[2]); err == nil {
			ctx.Episode = intPtr(n)
		}
		return nil
	}

	if m := epMarkerPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
			return nil
		}
	}

	if m := bracketNumPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
			return nil
		}
	}

	if m := trailingNumPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
		}
	}

	return nil
}
