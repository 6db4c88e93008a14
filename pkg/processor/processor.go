package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/internal/models"
)

// Metadata keys attached to every chunk.
const (
	Header1 = "Header 1"
	Header2 = "Header 2"
	Header3 = "Header 3"
)

type header struct {
	marker string
	key    string
}

type ProcessorConfig struct {
	// Headers lists the markers to split on, most specific last.
	Headers []string
	// KeepHeaders keeps the heading line at the top of each chunk's text.
	KeepHeaders bool
}

type Processor struct {
	config  ProcessorConfig
	headers []header
}

func NewWithConfig(config ProcessorConfig) Processor {
	if len(config.Headers) == 0 {
		config.Headers = []string{"#", "##", "###"}
	}

	keys := []string{Header1, Header2, Header3}
	headers := make([]header, 0, len(config.Headers))
	for i, marker := range config.Headers {
		key := "Header " + marker
		if i < len(keys) {
			key = keys[i]
		}
		headers = append(headers, header{marker: marker, key: key})
	}

	return Processor{
		config:  config,
		headers: headers,
	}
}

func New() Processor {
	return NewWithConfig(ProcessorConfig{})
}

// Process splits a parsed resume into header-bounded chunks in document
// order. Text without headings yields a single chunk with empty metadata.
func (p *Processor) Process(resume *models.Resume) []schema.Document {
	if resume.Empty() {
		return nil
	}
	return p.Split(resume.Content)
}

type section struct {
	level int
	name  string
}

// Split applies the header rules to raw markdown.
func (p *Processor) Split(text string) []schema.Document {
	text = sanitizeUTF8(text)

	var (
		chunks  []schema.Document
		stack   []section
		content []string
		inFence bool
		fence   string
	)

	flush := func() {
		if len(content) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(content, "\n"))
		content = content[:0]
		if body == "" {
			return
		}
		chunks = append(chunks, schema.Document{
			PageContent: body,
			Metadata:    p.metadata(stack),
		})
	}

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")

		if marker, ok := fenceMarker(strings.TrimSpace(raw)); ok {
			if !inFence {
				inFence, fence = true, marker
			} else if marker == fence {
				inFence = false
			}
			content = append(content, raw)
			continue
		}

		// Fenced lines are kept verbatim.
		if inFence {
			content = append(content, raw)
			continue
		}

		line := cleanLine(raw)
		if level, name, ok := p.matchHeader(line); ok {
			flush()
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, section{level: level, name: name})
			if p.config.KeepHeaders {
				content = append(content, line)
			}
			continue
		}

		content = append(content, line)
	}
	flush()

	return chunks
}

// matchHeader returns the 1-based level for lines such as "## Skills".
func (p *Processor) matchHeader(line string) (int, string, bool) {
	level, best := 0, ""
	for i, h := range p.headers {
		if line == h.marker || strings.HasPrefix(line, h.marker+" ") {
			if len(h.marker) > len(best) {
				level, best = i+1, h.marker
			}
		}
	}
	if level == 0 {
		return 0, "", false
	}
	return level, strings.TrimSpace(strings.TrimPrefix(line, best)), true
}

func (p *Processor) metadata(stack []section) map[string]any {
	meta := make(map[string]any, len(stack))
	for _, s := range stack {
		if s.name == "" {
			continue
		}
		meta[p.headers[s.level-1].key] = s.name
	}
	return meta
}

func fenceMarker(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```", true
	case strings.HasPrefix(line, "~~~"):
		return "~~~", true
	}
	return "", false
}

// cleanLine collapses runs of whitespace inside a line.
func cleanLine(line string) string {
	if !strings.ContainsAny(line, "\t\r ") && !strings.Contains(line, "  ") {
		return line
	}
	return strings.Join(strings.Fields(line), " ")
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
