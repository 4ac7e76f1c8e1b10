package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/config"
	"github.com/pithecene-io/pressroom/cli/reader"
	"github.com/pithecene-io/pressroom/cli/render"
	"github.com/pithecene-io/pressroom/cli/tui"
	"github.com/pithecene-io/pressroom/ipc"
)

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(), ConfigFlag(), ControlSocketFlag())
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show live statistics of a running server",
		Flags:  flags,
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	socket, err := resolveControlSocket(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	rd := reader.NewControlReader(socket, nil)

	stats, err := rd.Stats(c.Context)
	if err != nil {
		return controlError(socket, err)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStats, stats, func(ctx context.Context) (any, error) {
			return rd.Stats(ctx)
		})
	}
	return r.Render(stats)
}

// resolveControlSocket applies --control-socket over the config file.
func resolveControlSocket(c *cli.Context) (string, error) {
	cfg, err := resolveConfig(c, func(o flagOverlay, cfg *config.Config) {
		o.str("control-socket", &cfg.ControlSocket)
	})
	if err != nil {
		return "", err
	}
	return cfg.ControlSocket, nil
}

// controlError turns a control socket failure into an exit error.
func controlError(socket string, err error) error {
	if errors.Is(err, ipc.ErrNotRunning) {
		return cli.Exit(fmt.Sprintf("no server is listening on %s", socket), 1)
	}
	return cli.Exit(fmt.Sprintf("control request failed: %v", err), 1)
}
