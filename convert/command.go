package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// Command placeholders.
const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"
)

// maxStderr bounds the captured stderr included in errors.
const maxStderr = 4096

// CommandRenderer runs an external converter, e.g.
//
//	["pandoc", "{input}", "-o", "{output}"]
//
// The command must exit zero and produce the output file.
type CommandRenderer struct {
	argv []string
}

// NewCommandRenderer validates argv. The program must be non-empty and
// {output} must appear in at least one argument.
func NewCommandRenderer(argv []string) (*CommandRenderer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command renderer requires a command")
	}
	hasOutput := false
	for _, arg := range argv {
		if strings.Contains(arg, PlaceholderOutput) {
			hasOutput = true
		}
	}
	if !hasOutput {
		return nil, fmt.Errorf("command renderer requires %s in its arguments", PlaceholderOutput)
	}
	return &CommandRenderer{argv: append([]string(nil), argv...)}, nil
}

// Name returns RendererCommand.
func (r *CommandRenderer) Name() string {
	return RendererCommand
}

// Render runs the command. On a non-zero exit the error carries the exit
// code and the first bytes of stderr.
func (r *CommandRenderer) Render(ctx context.Context, inputPath, outputPath string) error {
	args := make([]string, len(r.argv))
	replacer := strings.NewReplacer(PlaceholderInput, inputPath, PlaceholderOutput, outputPath)
	for i, arg := range r.argv {
		args[i] = replacer.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := -1
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			code = status.ExitStatus()
		}
		return fmt.Errorf("%s exited with code %d: %s", args[0], code, trimStderr(stderr.Bytes()))
	}
	return fmt.Errorf("run %s: %w", args[0], err)
}

func trimStderr(b []byte) string {
	if len(b) > maxStderr {
		b = b[:maxStderr]
	}
	return strings.TrimSpace(string(b))
}

// Verify CommandRenderer implements Renderer.
var _ Renderer = (*CommandRenderer)(nil)
