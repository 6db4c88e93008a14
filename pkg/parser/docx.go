package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var headingStyle = regexp.MustCompile(`(?i)^heading\s*(\d)$`)

func (p *Parser) parseDOCX(path string, meta map[string]interface{}) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	content, paragraphs, err := p.docxToMarkdown(r.Editable().GetContent())
	if err != nil {
		return "", fmt.Errorf("read docx body: %w", err)
	}
	meta["paragraphs"] = paragraphs
	return content, nil
}

type docxParagraph struct {
	style string
	text  strings.Builder
}

// docxToMarkdown walks the paragraphs of document.xml in order. Heading and
// Title styles become markdown headings. Elements are matched by local name,
// so the namespace prefix and attribute order do not matter.
func (p *Parser) docxToMarkdown(body string) (string, int, error) {
	var (
		b     strings.Builder
		count int
		// Text boxes nest paragraphs inside runs.
		stack []*docxParagraph
		runs  int
		inPPr int
		inT   bool
	)

	emit := func(para *docxParagraph) {
		line := strings.TrimSpace(para.text.String())
		if line == "" {
			return
		}
		count++

		level := styleLevel(para.style)
		if level == 0 && p.isSectionTitle(line) {
			level = 2
		}
		if level > 0 {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.Repeat("#", level) + " " + strings.TrimRight(line, ":") + "\n")
			return
		}
		b.WriteString(line + "\n")
	}

	d := xml.NewDecoder(strings.NewReader(body))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, err
		}

		var para *docxParagraph
		if len(stack) > 0 {
			para = stack[len(stack)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				stack = append(stack, &docxParagraph{})
			case "pPr":
				inPPr++
			case "pStyle":
				if para != nil && inPPr > 0 {
					para.style = attr(t, "val")
				}
			case "r":
				runs++
			case "t":
				inT = runs > 0
			case "tab":
				// Tab stops inside paragraph properties are not text.
				if para != nil && runs > 0 && inPPr == 0 {
					para.text.WriteString(" ")
				}
			case "br", "cr":
				if para != nil && runs > 0 {
					para.text.WriteString("\n")
				}
			case "noBreakHyphen":
				if para != nil && runs > 0 {
					para.text.WriteString("-")
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if para != nil {
					stack = stack[:len(stack)-1]
					emit(para)
				}
			case "pPr":
				inPPr--
			case "r":
				runs--
			case "t":
				inT = false
			}

		case xml.CharData:
			if inT && para != nil {
				para.text.Write(t)
			}
		}
	}

	return strings.TrimSpace(b.String()), count, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func styleLevel(style string) int {
	if strings.EqualFold(style, "Title") {
		return 1
	}
	m := headingStyle.FindStringSubmatch(style)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0
	}
	return min(n, 3)
}
