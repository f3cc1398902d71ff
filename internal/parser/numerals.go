package parser

var numeralValues = map[rune]int{
	'〇': 0, '零': 0,
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

// parseCJKNumeral converts a kanji/hanzi numeral such as 十二 or 百三
// into an int. Handles the positional forms used in episode markers
// (up to the hundreds); returns false for anything it cannot read.
func parseCJKNumeral(s string) (int, bool) {
	if s == "" {
		return 0, false
	}

	total := 0
	current := 0
	seen := false

	for _, r := range s {
		switch r {
		case '十':
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
			seen = true
		case '百':
			if current == 0 {
				current = 1
			}
			total += current * 100
			current = 0
			seen = true
		default:
			v, ok := numeralValues[r]
			if !ok {
				return 0, false
			}
			current = v
			seen = true
		}
	}

	total += current
	if !seen {
		return 0, false
	}
	return total, true
}
