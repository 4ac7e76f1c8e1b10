// Package convert turns a received source document into its artifact.
//
// A Renderer does the actual work (in process or through an external
// command); the Invoker wraps it with the contract the connection handler
// relies on: fixed output path, size taken from the produced file, and
// every failure classified as a conversion failure.
package convert

import (
	"context"
	"fmt"
)

// Renderer names.
const (
	RendererPDF     = "fpdf"
	RendererCommand = "command"
)

// Renderer converts the file at inputPath into outputPath.
// Implementations must not leave a partial file behind on success paths
// they do not control; the Invoker removes outputPath on failure.
type Renderer interface {
	// Name identifies the renderer in logs and metrics.
	Name() string
	// Render writes the artifact. Must respect ctx cancellation.
	Render(ctx context.Context, inputPath, outputPath string) error
}

// RendererConfig selects and configures a renderer.
type RendererConfig struct {
	// Type is RendererPDF (default) or RendererCommand.
	Type string
	// Command is the argv for RendererCommand. {input} and {output} are
	// replaced by the file paths.
	Command []string
	// FontSize is the body font size for RendererPDF. Zero means DefaultFontSize.
	FontSize float64
}

// NewRenderer builds the configured renderer.
func NewRenderer(cfg RendererConfig) (Renderer, error) {
	switch cfg.Type {
	case "", RendererPDF:
		return NewPDFRenderer(cfg.FontSize), nil
	case RendererCommand:
		return NewCommandRenderer(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown renderer type %q (want %s or %s)", cfg.Type, RendererPDF, RendererCommand)
	}
}
