package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/pressroom/cli/config"
)

// DefaultConfigFile is loaded from the working directory when --config is
// not given and the file exists.
const DefaultConfigFile = "pressroom.yaml"

// loadConfigFile returns the config named by --config, or DefaultConfigFile
// when present, or an empty config.
func loadConfigFile(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &config.Config{}, nil
			}
			return nil, fmt.Errorf("stat %s: %w", DefaultConfigFile, err)
		}
		path = DefaultConfigFile
	}
	return config.Load(path)
}

// flagOverlay copies flags that were set (on the command line or through
// their env vars) over file values. Unset flags leave the file alone.
type flagOverlay struct {
	c *cli.Context
}

func (o flagOverlay) str(name string, dst *string) {
	if o.c.IsSet(name) {
		*dst = o.c.String(name)
	}
}

func (o flagOverlay) integer(name string, dst *int) {
	if o.c.IsSet(name) {
		*dst = o.c.Int(name)
	}
}

func (o flagOverlay) int64Value(name string, dst *int64) {
	if o.c.IsSet(name) {
		*dst = o.c.Int64(name)
	}
}

func (o flagOverlay) duration(name string, dst *config.Duration) {
	if o.c.IsSet(name) {
		dst.Duration = o.c.Duration(name)
	}
}

func (o flagOverlay) boolean(name string, dst *bool) {
	if o.c.IsSet(name) {
		*dst = o.c.Bool(name)
	}
}

// storageFlags select the record store for serve and records.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "storage-backend",
			Usage:   "Record store: sqlite, fs, s3, or memory (default: sqlite)",
			EnvVars: []string{"PRESSROOM_STORAGE_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "storage-path",
			Usage:   "Store location (sqlite: database file, fs: directory, s3: bucket/prefix)",
			EnvVars: []string{"PRESSROOM_STORAGE_PATH"},
		},
		&cli.StringFlag{
			Name:  "storage-dataset",
			Usage: "Dataset ID for the fs and s3 backends",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

func (o flagOverlay) storage(dst *config.StorageConfig) {
	o.str("storage-backend", &dst.Backend)
	o.str("storage-path", &dst.Path)
	o.str("storage-dataset", &dst.Dataset)
	o.str("storage-region", &dst.Region)
	o.str("storage-endpoint", &dst.Endpoint)
	o.boolean("storage-s3-path-style", &dst.S3PathStyle)
}

// resolveConfig loads the config file, overlays set flags, applies
// defaults, and validates. Precedence: flag > env > file > default.
func resolveConfig(c *cli.Context, overlay func(flagOverlay, *config.Config)) (*config.Config, error) {
	cfg, err := loadConfigFile(c)
	if err != nil {
		return nil, err
	}
	overlay(flagOverlay{c: c}, cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
