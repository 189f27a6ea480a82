// Package pdf renders PDF pages into lightly structured markdown text.
package pdf

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Font size thresholds in points.
const (
	headingSize    = 14.0
	subheadingSize = 12.0
)

// Glyph placement tolerances, in points and fractions of the font size.
const (
	baselineTolerance = 0.5
	wordGap           = 0.15
)

// Extractor reads PDF files page by page.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the file extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Extract returns one Page per document page. Pages whose content cannot be
// decoded are logged and returned empty.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	f, reader, err := open(path)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	total := reader.NumPage()
	logger.Info("Parsing %s (%d pages)", domain.FilenameOf(path), total)

	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lines, err := pageLines(reader.Page(i))
		if err != nil {
			logger.Warn("%s: page %d could not be decoded: %v", domain.FilenameOf(path), i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: Clean(Render(lines))})
	}

	return pages, nil
}

// open wraps pdf.Open, which panics on some malformed files.
func open(path string) (f *os.File, reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			if f != nil {
				_ = f.Close()
			}
			f, reader, err = nil, nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	return pdf.Open(path)
}

// pageLines splits a page's glyphs into lines by baseline, keeping the order
// in which they were drawn.
func pageLines(page pdf.Page) (lines [][]Run, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("decode content: %v", r)
		}
	}()

	if page.V.IsNull() {
		return nil, nil
	}

	var (
		line []Run
		prev pdf.Text
	)
	for i, t := range page.Content().Text {
		if i > 0 && math.Abs(t.Y-prev.Y) > baselineTolerance {
			lines = append(lines, line)
			line = nil
		} else if i > 0 && prev.W > 0 && t.X-(prev.X+prev.W) > wordGap*t.FontSize {
			line = append(line, Run{Text: " ", Font: t.Font, Size: t.FontSize})
		}
		line = append(line, Run{Text: t.S, Font: t.Font, Size: t.FontSize})
		prev = t
	}
	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines, nil
}

// Run is a piece of text drawn with a single font and size.
type Run struct {
	Text string
	Font string
	Size float64
}

// Render groups consecutive runs sharing a font and size into spans and
// renders each span in reading order.
func Render(lines [][]Run) string {
	var b strings.Builder
	for _, line := range lines {
		for _, span := range spans(line) {
			b.WriteString(RenderSpan(span))
		}
	}
	return b.String()
}

func spans(line []Run) []Run {
	var out []Run
	for _, r := range line {
		if n := len(out); n > 0 && out[n-1].Font == r.Font && out[n-1].Size == r.Size {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	return out
}

// RenderSpan formats one span: large text becomes a heading, bold text is
// emphasised, anything else is padded with spaces. Blank spans render empty.
func RenderSpan(s Run) string {
	text := strings.TrimSpace(s.Text)
	if text == "" {
		return ""
	}

	switch {
	case s.Size > headingSize:
		return "\n# " + text + "\n"
	case s.Size > subheadingSize:
		return "\n## " + text + "\n"
	case IsBold(s.Font):
		return " **" + text + "** "
	default:
		return " " + text + " "
	}
}

// IsBold reports whether a PostScript font name denotes a bold face,
// e.g. "Helvetica-Bold", "ABCDEF+Inter-Black" or "Arial,Bold".
func IsBold(font string) bool {
	if font == "" {
		return false
	}
	if strings.HasSuffix(font, ",B") {
		return true
	}
	for _, marker := range []string{"Bold", "Black", "Heavy"} {
		if strings.Contains(font, marker) {
			return true
		}
	}
	return false
}

var cleaner = strings.NewReplacer(
	"\x00", "",
	"\ufb01", "fi",
	"\ufb02", "fl",
)

// Clean removes NUL bytes and expands the fi/fl ligatures.
func Clean(text string) string {
	return cleaner.Replace(text)
}
