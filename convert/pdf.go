package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
)

// Page layout.
const (
	// DefaultFontSize is the body font size in points.
	DefaultFontSize = 12.0
	// marginMM applies to all four sides.
	marginMM = 20.0
	// leadingRatio is line height over font size (14pt leading at 12pt).
	leadingRatio = 14.0 / 12.0
	// ptToMM converts points to millimetres.
	ptToMM = 25.4 / 72.0
)

// ErrInvalidEncoding is returned when the source is not valid UTF-8.
var ErrInvalidEncoding = errors.New("source is not valid UTF-8")

// PDFRenderer lays plain text out on A4 pages with go-pdf/fpdf.
//
// Each non-blank line becomes one justified paragraph with internal
// whitespace collapsed to single spaces. Blank lines are skipped.
// Text is drawn in Helvetica, so characters outside cp1252 are
// substituted.
type PDFRenderer struct {
	fontSize float64
}

// NewPDFRenderer creates an in-process renderer. A non-positive fontSize
// means DefaultFontSize.
func NewPDFRenderer(fontSize float64) *PDFRenderer {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	return &PDFRenderer{fontSize: fontSize}
}

// Name returns RendererPDF.
func (r *PDFRenderer) Name() string {
	return RendererPDF
}

// Render reads inputPath and writes the PDF to outputPath.
func (r *PDFRenderer) Render(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if !utf8.Valid(data) {
		return ErrInvalidEncoding
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.SetFont("Helvetica", "", r.fontSize)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	lineHeight := r.fontSize * leadingRatio * ptToMM

	for _, para := range Paragraphs(string(data)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.MultiCell(0, lineHeight, tr(para), "", "J", false)
	}

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Paragraphs splits text into non-blank lines with whitespace collapsed.
func Paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return out
}

// Verify PDFRenderer implements Renderer.
var _ Renderer = (*PDFRenderer)(nil)
