package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/pressroom/sqlite"
)

// Defaults applied by ApplyDefaults for values the file leaves unset.
const (
	DefaultPort           = 5000
	DefaultControlSocket  = "pressroom.sock"
	DefaultLogLevel       = "info"
	DefaultStorageBackend = "sqlite"
	DefaultRenderer       = "fpdf"
	DefaultStdinKeyword   = "exit"
	DefaultFSPath         = "records"
)

// Config represents a pressroom.yaml configuration file.
// All values are optional and act as defaults for pressroom serve flags.
// CLI flags and environment variables always override config values.
type Config struct {
	Listen         ListenConfig   `yaml:"listen"`
	TempDir        string         `yaml:"temp_dir"`
	AuditLog       string         `yaml:"audit_log"`
	LogLevel       string         `yaml:"log_level"`
	MaxConnections int            `yaml:"max_connections"`
	IOTimeout      Duration       `yaml:"io_timeout"`
	MaxFileSize    int64          `yaml:"max_file_size"`
	Renderer       RendererConfig `yaml:"renderer"`
	Storage        StorageConfig  `yaml:"storage"`
	Queue          QueueConfig    `yaml:"queue"`
	Shutdown       ShutdownConfig `yaml:"shutdown"`
	ControlSocket  string         `yaml:"control_socket"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	Adapter        AdapterConfig  `yaml:"adapter"`
}

// ListenConfig holds the bind address.
type ListenConfig struct {
	// Host to bind. Empty binds every address family.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RendererConfig selects how text becomes PDF.
type RendererConfig struct {
	Type     string   `yaml:"type"`
	Command  []string `yaml:"command,omitempty"`
	FontSize float64  `yaml:"font_size,omitempty"`
}

// StorageConfig holds record store settings.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// QueueConfig tunes the persistence worker.
type QueueConfig struct {
	Capacity       int      `yaml:"capacity"`
	DrainTimeout   Duration `yaml:"drain_timeout"`
	PersistTimeout Duration `yaml:"persist_timeout"`
}

// ShutdownConfig tunes graceful shutdown.
type ShutdownConfig struct {
	HandlerTimeout Duration `yaml:"handler_timeout"`
	StdinKeyword   string   `yaml:"stdin_keyword"`
}

// ResolvedPath returns the store location with backend defaults applied.
// The sqlite backend uses a database file; fs uses a root directory.
func (s StorageConfig) ResolvedPath() string {
	if s.Path != "" {
		return s.Path
	}
	switch s.Backend {
	case "", "sqlite":
		return sqlite.DefaultPath
	case "fs":
		return DefaultFSPath
	}
	return ""
}

// AdapterConfig holds completion notifier settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset values. Zero timeouts and limits are left
// alone; they mean "unbounded" downstream.
func (c *Config) ApplyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ControlSocket == "" {
		c.ControlSocket = DefaultControlSocket
	}
	if c.Renderer.Type == "" {
		c.Renderer.Type = DefaultRenderer
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Shutdown.StdinKeyword == "" {
		c.Shutdown.StdinKeyword = DefaultStdinKeyword
	}
}

// Validate rejects values that cannot produce a working server.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q must be debug, info, warn, or error", c.LogLevel))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("max_connections must be >= 0, got %d", c.MaxConnections))
	}
	if c.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize))
	}

	errs = append(errs, c.validateDurations()...)

	switch c.Renderer.Type {
	case "", "fpdf":
	case "command":
		if len(c.Renderer.Command) == 0 {
			errs = append(errs, errors.New("renderer.command is required when renderer.type is command"))
		}
	default:
		errs = append(errs, fmt.Errorf("renderer.type %q must be fpdf or command", c.Renderer.Type))
	}
	if c.Renderer.FontSize < 0 {
		errs = append(errs, fmt.Errorf("renderer.font_size must be >= 0, got %v", c.Renderer.FontSize))
	}

	switch c.Storage.Backend {
	case "", "sqlite", "fs", "memory":
	case "s3":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path (bucket[/prefix]) is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be sqlite, fs, s3, or memory", c.Storage.Backend))
	}

	if c.Queue.Capacity < 0 {
		errs = append(errs, fmt.Errorf("queue.capacity must be >= 0, got %d", c.Queue.Capacity))
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for the %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type %q must be webhook or redis", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}

	return errors.Join(errs...)
}

func (c *Config) validateDurations() []error {
	fields := []struct {
		name string
		d    Duration
	}{
		{"io_timeout", c.IOTimeout},
		{"queue.drain_timeout", c.Queue.DrainTimeout},
		{"queue.persist_timeout", c.Queue.PersistTimeout},
		{"shutdown.handler_timeout", c.Shutdown.HandlerTimeout},
		{"adapter.timeout", c.Adapter.Timeout},
	}
	var errs []error
	for _, f := range fields {
		if f.d.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", f.name, f.d.Duration))
		}
	}
	return errs
}
