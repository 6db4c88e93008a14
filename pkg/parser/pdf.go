package parser

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// textLine is one visual row of a PDF page.
type textLine struct {
	Text string
	Size float64
}

const (
	// lineTolerance is the share of the font size two glyphs may differ in
	// baseline and still sit on the same row.
	lineTolerance = 0.4
	// gapRatio is the horizontal gap, relative to the font size, read as a space.
	gapRatio = 0.15
	// advanceRatio approximates glyph width for fonts without a Widths array.
	advanceRatio = 0.5
)

func (p *Parser) parsePDF(path string, meta map[string]interface{}) (content string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()
	var lines []textLine
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, glyphsToLines(page.Content().Text)...)
	}

	meta["pages"] = pages
	return p.toMarkdown(lines), nil
}

// glyphsToLines groups positioned glyphs into rows. A row ends when the
// baseline moves by more than lineTolerance of the font size; rows keep
// content stream order.
func glyphsToLines(glyphs []pdf.Text) []textLine {
	var (
		lines []textLine
		row   lineBuilder
	)
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if row.started && !row.sameRow(g) {
			if line, ok := row.line(); ok {
				lines = append(lines, line)
			}
			row = lineBuilder{}
		}
		row.add(g)
	}
	if line, ok := row.line(); ok {
		lines = append(lines, line)
	}
	return lines
}

type lineBuilder struct {
	b       strings.Builder
	started bool
	y       float64
	size    float64
	end     float64
}

func (lb *lineBuilder) sameRow(g pdf.Text) bool {
	size := math.Max(g.FontSize, lb.size)
	if size <= 0 {
		return g.Y == lb.y
	}
	return math.Abs(g.Y-lb.y) <= lineTolerance*size
}

func (lb *lineBuilder) add(g pdf.Text) {
	space := isSpace(g.S)
	if !lb.started {
		lb.started = true
		lb.y = g.Y
		lb.end = g.X
	} else if !space && g.X-lb.end > gapRatio*g.FontSize {
		lb.b.WriteByte(' ')
	}

	if space {
		lb.b.WriteByte(' ')
	} else {
		lb.b.WriteString(g.S)
		if g.FontSize > lb.size {
			lb.size = g.FontSize
		}
	}

	if g.W > 0 {
		lb.end = g.X + g.W
	} else {
		lb.end = math.Max(lb.end, g.X) + advanceRatio*g.FontSize
	}
}

func (lb *lineBuilder) line() (textLine, bool) {
	text := strings.Join(strings.Fields(lb.b.String()), " ")
	if text == "" {
		return textLine{}, false
	}
	return textLine{Text: text, Size: lb.size}, true
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
