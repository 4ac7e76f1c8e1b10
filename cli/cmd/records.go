package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/config"
	"github.com/pithecene-io/pressroom/cli/reader"
	"github.com/pithecene-io/pressroom/cli/render"
	"github.com/pithecene-io/pressroom/cli/tui"
)

// DefaultRecordsLimit caps a records listing when --limit is not given.
const DefaultRecordsLimit = 20

// RecordsCommand returns the records command.
func RecordsCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(),
		ConfigFlag(),
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum records to list (0 = all)",
			Value: DefaultRecordsLimit,
		},
		&cli.StringFlag{
			Name:  "day",
			Usage: "Only list records from this UTC day (YYYY-MM-DD)",
		},
	)
	flags = append(flags, storageFlags()...)

	return &cli.Command{
		Name:   "records",
		Usage:  "List persisted conversion records, newest first",
		Flags:  flags,
		Action: recordsAction,
	}
}

func recordsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	opts := reader.RecordsOptions{Day: c.String("day"), Limit: c.Int("limit")}
	if opts.Limit < 0 {
		return cli.Exit("--limit must be >= 0", 1)
	}
	if opts.Day != "" {
		if _, err := time.Parse(time.DateOnly, opts.Day); err != nil {
			return cli.Exit(fmt.Sprintf("--day must be YYYY-MM-DD, got %q", opts.Day), 1)
		}
	}

	cfg, err := resolveConfig(c, func(o flagOverlay, cfg *config.Config) {
		o.storage(&cfg.Storage)
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	src, err := reader.OpenRecordSource(c.Context, cfg.Storage)
	if err != nil {
		if errors.Is(err, reader.ErrMemoryBackend) {
			return cli.Exit(err.Error(), 1)
		}
		return cli.Exit(fmt.Sprintf("open record store: %v", err), 1)
	}
	rd := reader.NewControlReader("", src)
	defer func() { _ = rd.Close() }()

	records, err := rd.Records(c.Context, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("list records: %v", err), 1)
	}
	if records == nil {
		records = []reader.RecordView{}
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewRecords, records, nil)
	}
	return r.Render(records)
}
