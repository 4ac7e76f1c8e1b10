package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/pressroom/log"
	"github.com/pithecene-io/pressroom/metrics"
	"github.com/pithecene-io/pressroom/types"
)

// Artifact is a produced output file.
type Artifact struct {
	Path string
	Size int64
}

// Invoker runs a Renderer for one job. Safe for concurrent use if the
// renderer is.
type Invoker struct {
	renderer Renderer
	logger   *log.Logger
	metrics  *metrics.Collector
}

// NewInvoker wraps renderer. logger and collector may be nil.
func NewInvoker(renderer Renderer, logger *log.Logger, collector *metrics.Collector) *Invoker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Invoker{renderer: renderer, logger: logger, metrics: collector}
}

// OutputPath returns the artifact path for an input path: the same path
// with the output extension.
func OutputPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + types.OutputExtension
}

// Convert renders inputPath to OutputPath(inputPath). The size of the
// produced file is ground truth. Every error is a *types.JobError with
// Kind=ErrorConversionFailed; no retry is attempted.
func (i *Invoker) Convert(ctx context.Context, inputPath string) (*Artifact, error) {
	outputPath := OutputPath(inputPath)

	if err := i.renderer.Render(ctx, inputPath, outputPath); err != nil {
		return nil, i.fail(outputPath, "renderer failed", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, i.fail(outputPath, "renderer produced no output", nil)
		}
		return nil, i.fail(outputPath, "cannot stat output", err)
	}
	if !info.Mode().IsRegular() {
		return nil, i.fail(outputPath, fmt.Sprintf("output is not a regular file (%s)", info.Mode().Type()), nil)
	}

	i.metrics.IncConversionSuccess()
	return &Artifact{Path: outputPath, Size: info.Size()}, nil
}

// fail removes any partial output and classifies the error.
func (i *Invoker) fail(outputPath, msg string, err error) error {
	i.metrics.IncConversionFailure()
	if rmErr := os.Remove(outputPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		i.logger.Warn("failed to remove partial output", map[string]any{
			"path":  outputPath,
			"error": rmErr.Error(),
		})
	}
	return types.NewJobError(types.ErrorConversionFailed, msg, err)
}

// Renderer returns the wrapped renderer.
func (i *Invoker) Renderer() Renderer {
	return i.renderer
}
