// Package cmd provides CLI commands for the pressroom binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/config"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (stats, records).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (stats, records only)",
	}
)

// ConfigFlag points at a pressroom.yaml file.
func ConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a pressroom.yaml config file (default: ./" + DefaultConfigFile + " if present)",
		EnvVars: []string{"PRESSROOM_CONFIG"},
	}
}

// ControlSocketFlag points at the server control socket.
func ControlSocketFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "control-socket",
		Usage:   "Path to the server control socket (default: " + config.DefaultControlSocket + ")",
		EnvVars: []string{"PRESSROOM_CONTROL_SOCKET"},
	}
}

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}
