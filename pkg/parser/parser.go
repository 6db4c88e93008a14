package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/resumatch/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a converter.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoText is returned when a document converts to an empty string.
	ErrNoText = errors.New("document contains no extractable text")
)

// Supported extensions.
const (
	ExtPDF      = ".pdf"
	ExtDOCX     = ".docx"
	ExtMarkdown = ".md"
	ExtText     = ".txt"
)

type ParserConfig struct {
	// MaxHeadingLength is the longest line, in runes, that may be promoted to a heading.
	MaxHeadingLength int
	// SectionTitles are line texts treated as second level headings even when
	// they share the body font size.
	SectionTitles []string
}

type Parser struct {
	config   ParserConfig
	sections map[string]struct{}
}

func NewWithConfig(config ParserConfig) *Parser {
	if config.MaxHeadingLength == 0 {
		config.MaxHeadingLength = 80
	}
	if len(config.SectionTitles) == 0 {
		config.SectionTitles = defaultSectionTitles()
	}

	sections := make(map[string]struct{}, len(config.SectionTitles))
	for _, title := range config.SectionTitles {
		sections[normalizeTitle(title)] = struct{}{}
	}

	return &Parser{config: config, sections: sections}
}

func New() *Parser {
	return NewWithConfig(ParserConfig{})
}

// Supported reports whether a file name has a known extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtPDF, ExtDOCX, ExtMarkdown, ExtText:
		return true
	}
	return false
}

// Parse converts the file at path into markdown-like text. The format is
// chosen by extension; name is reported as the resume's filename and
// defaults to the base of path.
func (p *Parser) Parse(path, name string) (*models.Resume, error) {
	if name == "" {
		name = filepath.Base(path)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	var (
		content string
		meta    = map[string]interface{}{}
		err     error
	)

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ExtPDF:
		content, err = p.parsePDF(path, meta)
	case ExtDOCX:
		content, err = p.parseDOCX(path, meta)
	case ExtMarkdown, ExtText:
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", name, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("convert %s: %w", name, ErrNoText)
	}

	meta["format"] = strings.TrimPrefix(ext, ".")

	return &models.Resume{
		Filename: name,
		Content:  content,
		Meta:     meta,
	}, nil
}

func (p *Parser) isSectionTitle(text string) bool {
	_, ok := p.sections[normalizeTitle(text)]
	return ok
}

func normalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ":")
	return strings.Join(strings.Fields(s), " ")
}

func defaultSectionTitles() []string {
	return []string{
		"Summary", "Profile", "Professional Summary", "About", "About Me", "Objective",
		"Experience", "Work Experience", "Professional Experience", "Employment History",
		"Education", "Skills", "Technical Skills", "Core Competencies",
		"Projects", "Certifications", "Certificates", "Publications",
		"Languages", "Awards", "Volunteering", "Interests", "References", "Contact",
	}
}
