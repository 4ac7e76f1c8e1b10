package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/render"
	"github.com/pithecene-io/pressroom/types"
)

// VersionResponse is the response for the version command.
// The server, the client and the wire protocol share one version.
type VersionResponse struct {
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
	Commit          string `json:"commit"`
}

// VersionCommand returns the version command.
// It must not contact a running server.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		resp := VersionResponse{
			Version:         types.Version,
			ProtocolVersion: types.ProtocolVersion,
			Commit:          commit,
		}

		return r.Render(resp)
	}
}
