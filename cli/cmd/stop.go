package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/ipc"
)

// stopPollInterval is how often --wait checks whether the server is gone.
const stopPollInterval = 100 * time.Millisecond

// StopCommand returns the stop command.
func StopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Ask a running server to shut down gracefully",
		Flags: []cli.Flag{
			ConfigFlag(),
			ControlSocketFlag(),
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait until the server has finished shutting down",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Bound on --wait",
				Value: time.Minute,
			},
		},
		Action: stopAction,
	}
}

func stopAction(c *cli.Context) error {
	socket, err := resolveControlSocket(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	if err := requestShutdown(ctx, socket); err != nil {
		return controlError(socket, err)
	}
	_, _ = fmt.Fprintln(c.App.Writer, "shutdown requested")

	if !c.Bool("wait") {
		return nil
	}
	if err := waitStopped(ctx, socket); err != nil {
		return cli.Exit(fmt.Sprintf("server still running: %v", err), 1)
	}
	_, _ = fmt.Fprintln(c.App.Writer, "server stopped")
	return nil
}

func requestShutdown(ctx context.Context, socket string) error {
	client, err := ipc.Dial(ctx, socket)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return client.Shutdown(ctx)
}

// waitStopped polls the control socket until nothing answers. The socket
// is removed last in the shutdown sequence.
func waitStopped(ctx context.Context, socket string) error {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		client, err := ipc.Dial(ctx, socket)
		if errors.Is(err, ipc.ErrNotRunning) && ctx.Err() == nil {
			return nil
		}
		if err == nil {
			_ = client.Close()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
