// Package testutil builds small fixture documents for tests.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// PDFLine is one line of text placed at X, Y (points, origin bottom left).
type PDFLine struct {
	Text string
	Size float64
	X, Y float64
}

// PDFOptions controls how the fixture is written.
type PDFOptions struct {
	// Widths embeds a fixed 600 unit advance for every printable glyph, so
	// readers can compute glyph widths. Without it the font carries no metrics.
	Widths bool
}

// PDF renders a single page PDF with one Helvetica font. Lines are placed
// with relative Td moves, the way TeX and most report generators do.
func PDF(opts PDFOptions, lines ...PDFLine) []byte {
	var content strings.Builder
	content.WriteString("BT\n")
	var x, y float64
	for _, l := range lines {
		fmt.Fprintf(&content, "/F1 %g Tf\n", l.Size)
		fmt.Fprintf(&content, "%g %g Td\n", l.X-x, l.Y-y)
		fmt.Fprintf(&content, "(%s) Tj\n", escapePDFString(l.Text))
		x, y = l.X, l.Y
	}
	content.WriteString("ET\n")

	font := "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding"
	if opts.Widths {
		widths := strings.TrimSpace(strings.Repeat("600 ", 126-32+1))
		font += " /FirstChar 32 /LastChar 126 /Widths [" + widths + "]"
	}
	font += " >>"

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		font,
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// ResumePDF is a one page resume: a 20pt name, 14pt section headings and
// 10pt body text.
func ResumePDF() []byte {
	return PDF(PDFOptions{},
		PDFLine{Text: "Jane Doe", Size: 20, X: 72, Y: 740},
		PDFLine{Text: "Experience", Size: 14, X: 72, Y: 700},
		PDFLine{Text: "Built payment services in Go at Acme Corp for five years", Size: 10, X: 72, Y: 680},
		PDFLine{Text: "Skills", Size: 14, X: 72, Y: 640},
		PDFLine{Text: "Kubernetes PostgreSQL Terraform", Size: 10, X: 72, Y: 620},
	)
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
