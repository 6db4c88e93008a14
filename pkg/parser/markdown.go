package parser

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// headingRatio is how much larger than body text a line must be to count as a heading.
const headingRatio = 1.15

// toMarkdown promotes visually larger lines to `#`..`###` headings, largest
// first, and known resume section titles to `##`.
func (p *Parser) toMarkdown(lines []textLine) string {
	body := bodySize(lines)
	levels := headingLevels(lines, body, p.config.MaxHeadingLength)

	var b strings.Builder
	for _, line := range lines {
		level := 0
		if l, ok := levels[roundSize(line.Size)]; ok && utf8.RuneCountInString(line.Text) <= p.config.MaxHeadingLength {
			level = l
		} else if p.isSectionTitle(line.Text) {
			level = 2
		}

		if level > 0 {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.Repeat("#", level))
			b.WriteString(" ")
			b.WriteString(strings.TrimRight(line.Text, ":"))
			b.WriteString("\n")
			continue
		}

		b.WriteString(line.Text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// bodySize is the font size carrying the most characters.
func bodySize(lines []textLine) float64 {
	weights := map[float64]int{}
	for _, line := range lines {
		if line.Size <= 0 {
			continue
		}
		weights[roundSize(line.Size)] += utf8.RuneCountInString(line.Text)
	}

	var best float64
	bestWeight := -1
	for size, w := range weights {
		if w > bestWeight || (w == bestWeight && size < best) {
			best, bestWeight = size, w
		}
	}
	return best
}

func headingLevels(lines []textLine, body float64, maxLen int) map[float64]int {
	levels := map[float64]int{}
	if body <= 0 {
		return levels
	}

	seen := map[float64]bool{}
	var sizes []float64
	for _, line := range lines {
		size := roundSize(line.Size)
		if size < body*headingRatio || seen[size] {
			continue
		}
		if utf8.RuneCountInString(line.Text) > maxLen || !hasLetter(line.Text) {
			continue
		}
		seen[size] = true
		sizes = append(sizes, size)
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))
	for i, size := range sizes {
		levels[size] = min(i+1, 3)
	}
	return levels
}

func roundSize(size float64) float64 {
	return math.Round(size*2) / 2
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
