// Package main provides the pressroom CLI entrypoint.
//
// Usage:
//
//	pressroom <command> [options]
//
// serve runs the conversion server; every other command is a client of a
// server or of its record store.
//
// Exit codes for `convert`:
//   - 0: converted
//   - 1: local validation failed
//   - 2: network or transfer failure
//   - 3: the server reported an error
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/cmd"
	"github.com/pithecene-io/pressroom/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "pressroom",
		Usage:          "Plain text to PDF conversion server and client",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Before:         cmd.DotEnvBefore,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ConvertCommand(),
			cmd.StatsCommand(),
			cmd.StopCommand(),
			cmd.RecordsCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler prints the error and exits with its code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit writes err to w and returns the process exit code. Codes from
// cli.Exit pass through; any other error exits 1.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
