package llm

import (
	"regexp"
	"strconv"
)

var (
	matchScorePattern = regexp.MustCompile(`(?i)match\s+score\s*[:\-]?[\s*_\[]*(\d{1,3})`)
	outOfHundred      = regexp.MustCompile(`\b(\d{1,3})\s*/\s*100\b`)
)

// ExtractScore scrapes the advisory 0-100 score from free text: the first
// "Match Score: N", otherwise the first "N/100". No match yields 0.
func ExtractScore(text string) int {
	for _, re := range []*regexp.Regexp{matchScorePattern, outOfHundred} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0
		}
		return clampScore(n)
	}
	return 0
}

func clampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}
