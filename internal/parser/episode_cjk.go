package parser

import (
	"regexp"
	"strconv"
)

var (
	jpEpisodePattern      = regexp.MustCompile(`第(\d{1,3})[話话]`)
	jpEpisodeKanjiPattern = regexp.MustCompile(`第([〇零一二三四五六七八九十百]+)[話话]`)
	jpSonoPattern         = regexp.MustCompile(`其の(\d{1,2}|[〇零一二三四五六七八九十]+)`)
	jpHashPattern         = regexp.MustCompile(`[＃#♯]\s?(\d{1,3})`)

	cnEpisodePattern      = regexp.MustCompile(`第(\d{1,3})集`)
	cnEpisodeHanziPattern = regexp.MustCompile(`第([〇零一二三四五六七八九十百]+)集`)
)

// japaneseEpisodePlugin reads 第N話, 其のN and ＃N style markers.
type japaneseEpisodePlugin struct{}

func (p *japaneseEpisodePlugin) Name() string           { return "episode_japanese" }
func (p *japaneseEpisodePlugin) Priority() int          { return 30 }
func (p *japaneseEpisodePlugin) Skip(ctx *Context) bool { return ctx.Episode != nil }

func (p *japaneseEpisodePlugin) Parse(ctx *Context) error {
	stem := ctx.Stem()

	if m := jpEpisodePattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
			return nil
		}
	}

	if m := jpEpisodeKanjiPattern.FindStringSubmatch(stem); m != nil {
		if n, ok := parseCJKNumeral(m[1]); ok {
			ctx.Episode = intPtr(n)
			return nil
		}
	}

	if m := jpSonoPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
			return nil
		}
		if n, ok := parseCJKNumeral(m[1]); ok {
			ctx.Episode = intPtr(n)
			return nil
		}
	}

	if m := jpHashPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
		}
	}

	return nil
}

// chineseEpisodePlugin reads 第N集 style markers.
type chineseEpisodePlugin struct{}

func (p *chineseEpisodePlugin) Name() string           { return "episode_chinese" }
func (p *chineseEpisodePlugin) Priority() int          { return 40 }
func (p *chineseEpisodePlugin) Skip(ctx *Context) bool { return ctx.Episode != nil }

func (p *chineseEpisodePlugin) Parse(ctx *Context) error {
	stem := ctx.Stem()

	if m := cnEpisodePattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Episode = intPtr(n)
			return nil
		}
	}

	if m := cnEpisodeHanziPattern.FindStringSubmatch(stem); m != nil {
		if n, ok := parseCJKNumeral(m[1]); ok {
			ctx.Episode = intPtr(n)
		}
	}

	return nil
}
