// Package main provides the standalone pressroom-convert client.
//
// Usage:
//
//	pressroom-convert --file-path <file.txt> [--host H] [--port P]
//	                  [--conversion-type txt2pdf] [--output-dir D] [--timeout T]
//
// Exit codes:
//   - 0: converted
//   - 1: local validation failed (nothing sent)
//   - 2: network or transfer failure
//   - 3: the server reported an error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/cmd"
	"github.com/pithecene-io/pressroom/types"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(cmd.ExitValidation)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "pressroom-convert",
		Usage:          "Send a text file to a pressroom server and save the PDF",
		Version:        types.Version,
		Flags:          cmd.ConvertFlags(),
		Before:         cmd.DotEnvBefore,
		Action:         cmd.ConvertAction,
		ExitErrHandler: exitErrHandler,
	}
}

// exitErrHandler handles errors from the CLI, respecting cli.ExitCoder.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Flag parsing and other usage errors count as local validation.
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(cmd.ExitValidation)
}
