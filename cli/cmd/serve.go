package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/config"
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag(),
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Address to bind (default: all interfaces, IPv4 and IPv6)",
			EnvVars: []string{"HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   fmt.Sprintf("TCP port to listen on (default: %d)", config.DefaultPort),
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:  "temp-dir",
			Usage: "Directory for per-session files (default: $TMPDIR/pressroom)",
		},
		&cli.StringFlag{
			Name:  "audit-log",
			Usage: "Append-only audit log file (default: log_send.txt)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"PRESSROOM_LOG_LEVEL"},
		},
		&cli.IntFlag{
			Name:  "max-connections",
			Usage: "Maximum concurrent connections (0 = unbounded)",
		},
		&cli.DurationFlag{
			Name:  "io-timeout",
			Usage: "Idle deadline for each socket read or write (0 = none)",
		},
		&cli.Int64Flag{
			Name:  "max-file-size",
			Usage: "Reject uploads larger than this many bytes (0 = unbounded)",
		},
		&cli.StringFlag{
			Name:  "renderer",
			Usage: "Renderer: fpdf or command (command argv comes from the config file)",
		},
		ControlSocketFlag(),
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Serve Prometheus metrics on this address (e.g. :9090)",
			EnvVars: []string{"PRESSROOM_METRICS_ADDR"},
		},
		&cli.BoolFlag{
			Name:  "no-stdin",
			Usage: "Do not watch stdin for the shutdown keyword",
		},
	}
	flags = append(flags, storageFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the conversion server",
		Description: `Accepts txt2pdf jobs over TCP until SIGINT, SIGTERM, the stdin
keyword (default "exit"), or "pressroom stop".

Settings come from flags, then environment variables, then
pressroom.yaml, then built-in defaults.`,
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := resolveServeConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var stdin io.Reader
	if !c.Bool("no-stdin") {
		stdin = os.Stdin
	}

	app, err := Build(c.Context, cfg, stdin)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to start: %v", err), 1)
	}
	if err := app.Run(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("shutdown finished with errors: %v", err), 1)
	}
	return nil
}

func resolveServeConfig(c *cli.Context) (*config.Config, error) {
	return resolveConfig(c, func(o flagOverlay, cfg *config.Config) {
		o.str("host", &cfg.Listen.Host)
		o.integer("port", &cfg.Listen.Port)
		o.str("temp-dir", &cfg.TempDir)
		o.str("audit-log", &cfg.AuditLog)
		o.str("log-level", &cfg.LogLevel)
		o.integer("max-connections", &cfg.MaxConnections)
		o.duration("io-timeout", &cfg.IOTimeout)
		o.int64Value("max-file-size", &cfg.MaxFileSize)
		o.str("renderer", &cfg.Renderer.Type)
		o.str("control-socket", &cfg.ControlSocket)
		o.str("metrics-addr", &cfg.MetricsAddr)
		o.storage(&cfg.Storage)
	})
}
