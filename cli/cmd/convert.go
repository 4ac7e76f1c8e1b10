package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/config"
	"github.com/pithecene-io/pressroom/client"
	"github.com/pithecene-io/pressroom/types"
)

// Exit codes for convert.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitNetwork    = 2
	ExitServer     = 3
)

// ConvertExitCode maps a client error to the convert exit code.
func ConvertExitCode(err error) int {
	var (
		verr *client.ValidationError
		nerr *client.NetworkError
		serr *client.ServerError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &verr):
		return ExitValidation
	case errors.As(err, &nerr):
		return ExitNetwork
	case errors.As(err, &serr):
		return ExitServer
	default:
		return ExitValidation
	}
}

// ConvertFlags returns the client flags shared by `pressroom convert` and
// the standalone pressroom-convert binary.
func ConvertFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "file-path",
			Aliases:  []string{"file_path"},
			Usage:    "Source .txt file to convert",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Server host",
			Value:   "localhost",
			EnvVars: []string{"HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Server port",
			Value:   config.DefaultPort,
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:    "conversion-type",
			Aliases: []string{"conversion_type"},
			Usage:   "Conversion to request (supported: txt2pdf)",
			Value:   string(types.ConversionTxt2PDF),
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory for the converted file (default: working directory)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Bound on the whole job",
			Value: client.DefaultTimeout,
		},
	}
}

// ConvertCommand returns the convert command.
func ConvertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Send a text file to a server and save the PDF",
		Description: `Exit codes:
   0  converted
   1  local validation failed (nothing sent)
   2  network or transfer failure
   3  the server reported an error`,
		Flags:  ConvertFlags(),
		Action: ConvertAction,
	}
}

// ConvertAction runs one conversion from the flags in c.
func ConvertAction(c *cli.Context) error {
	res, err := client.Convert(c.Context, client.Config{
		Host:      c.String("host"),
		Port:      c.Int("port"),
		Timeout:   c.Duration("timeout"),
		OutputDir: c.String("output-dir"),
	}, client.Request{
		Path:           c.String("file-path"),
		ConversionType: types.ConversionType(c.String("conversion-type")),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("conversion failed: %v", err), ConvertExitCode(err))
	}

	_, _ = fmt.Fprintf(c.App.Writer, "saved %s (%d bytes from %d)\n", res.OutputPath, res.Size, res.InputSize)
	return nil
}
