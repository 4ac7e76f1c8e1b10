package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `listen:
  host: 127.0.0.1
  port: 6000
temp_dir: /var/tmp/pressroom
audit_log: /var/log/pressroom/send.txt
log_level: debug
max_connections: 64
io_timeout: 30s
max_file_size: 10485760

renderer:
  type: command
  command: [pandoc, "{input}", -o, "{output}"]
  font_size: 11

storage:
  dataset: pressroom
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

queue:
  capacity: 256
  drain_timeout: 15s
  persist_timeout: 2s

shutdown:
  handler_timeout: 45s
  stdin_keyword: quit

control_socket: /run/pressroom.sock
metrics_addr: 127.0.0.1:9464

adapter:
  type: webhook
  url: https://hooks.example.com/pressroom
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	assertEqual(t, "listen.host", cfg.Listen.Host, "127.0.0.1")
	if cfg.Listen.Port != 6000 {
		t.Errorf("expected listen.port=6000, got %d", cfg.Listen.Port)
	}
	assertEqual(t, "temp_dir", cfg.TempDir, "/var/tmp/pressroom")
	assertEqual(t, "audit_log", cfg.AuditLog, "/var/log/pressroom/send.txt")
	assertEqual(t, "log_level", cfg.LogLevel, "debug")
	if cfg.MaxConnections != 64 || cfg.MaxFileSize != 10485760 {
		t.Errorf("limits = %d/%d", cfg.MaxConnections, cfg.MaxFileSize)
	}
	if cfg.IOTimeout.Duration != 30*time.Second {
		t.Errorf("expected io_timeout=30s, got %v", cfg.IOTimeout.Duration)
	}

	// Renderer
	assertEqual(t, "renderer.type", cfg.Renderer.Type, "command")
	if got := strings.Join(cfg.Renderer.Command, " "); got != "pandoc {input} -o {output}" {
		t.Errorf("renderer.command = %q", got)
	}
	if cfg.Renderer.FontSize != 11 {
		t.Errorf("expected renderer.font_size=11, got %v", cfg.Renderer.FontSize)
	}

	// Storage
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}

	// Queue and shutdown
	if cfg.Queue.Capacity != 256 {
		t.Errorf("expected queue.capacity=256, got %d", cfg.Queue.Capacity)
	}
	if cfg.Queue.DrainTimeout.Duration != 15*time.Second || cfg.Queue.PersistTimeout.Duration != 2*time.Second {
		t.Errorf("queue timeouts = %v/%v", cfg.Queue.DrainTimeout.Duration, cfg.Queue.PersistTimeout.Duration)
	}
	if cfg.Shutdown.HandlerTimeout.Duration != 45*time.Second {
		t.Errorf("expected shutdown.handler_timeout=45s, got %v", cfg.Shutdown.HandlerTimeout.Duration)
	}
	assertEqual(t, "shutdown.stdin_keyword", cfg.Shutdown.StdinKeyword, "quit")
	assertEqual(t, "control_socket", cfg.ControlSocket, "/run/pressroom.sock")
	assertEqual(t, "metrics_addr", cfg.MetricsAddr, "127.0.0.1:9464")

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/pressroom")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.Port != 0 || cfg.Storage.Backend != "" {
		t.Errorf("empty file produced non-zero config: %+v", cfg)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PRESSROOM_TEST_BUCKET", "records")

	yaml := `storage:
  backend: s3
  path: ${PRESSROOM_TEST_BUCKET}/prod
  region: ${PRESSROOM_TEST_REGION:-eu-west-1}
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "storage.path", cfg.Storage.Path, "records/prod")
	assertEqual(t, "storage.region", cfg.Storage.Region, "eu-west-1")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTemp(t, "listen: [unclosed"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeTemp(t, "listen:\n  prot: 5000\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeTemp(t, "io_timeout: soon\n"))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Listen.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Listen.Port, DefaultPort)
	}
	assertEqual(t, "listen.host", cfg.Listen.Host, "")
	assertEqual(t, "log_level", cfg.LogLevel, DefaultLogLevel)
	assertEqual(t, "control_socket", cfg.ControlSocket, DefaultControlSocket)
	assertEqual(t, "renderer.type", cfg.Renderer.Type, DefaultRenderer)
	assertEqual(t, "storage.backend", cfg.Storage.Backend, DefaultStorageBackend)
	assertEqual(t, "shutdown.stdin_keyword", cfg.Shutdown.StdinKeyword, DefaultStdinKeyword)
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}

	// Explicit values survive.
	cfg = &Config{Listen: ListenConfig{Port: 7000}, Storage: StorageConfig{Backend: "fs"}}
	cfg.ApplyDefaults()
	if cfg.Listen.Port != 7000 {
		t.Errorf("port overwritten: %d", cfg.Listen.Port)
	}
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "fs")
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port out of range", func(c *Config) { c.Listen.Port = 70000 }, "listen.port"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"negative connections", func(c *Config) { c.MaxConnections = -1 }, "max_connections"},
		{"negative file size", func(c *Config) { c.MaxFileSize = -5 }, "max_file_size"},
		{"negative timeout", func(c *Config) { c.IOTimeout.Duration = -time.Second }, "io_timeout"},
		{"unknown renderer", func(c *Config) { c.Renderer.Type = "latex" }, "renderer.type"},
		{"command without argv", func(c *Config) { c.Renderer.Type = "command" }, "renderer.command"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"s3 without path", func(c *Config) { c.Storage.Backend = "s3" }, "storage.path"},
		{"negative capacity", func(c *Config) { c.Queue.Capacity = -1 }, "queue.capacity"},
		{"unknown adapter", func(c *Config) { c.Adapter.Type = "kafka" }, "adapter.type"},
		{"adapter without url", func(c *Config) { c.Adapter.Type = "redis" }, "adapter.url"},
		{"negative retries", func(c *Config) { c.Adapter.Retries = &negative }, "adapter.retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = -1
	cfg.Storage.Backend = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"listen.port", "storage.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pressroom.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}

func TestStorageConfig_ResolvedPath(t *testing.T) {
	tests := []struct {
		cfg  StorageConfig
		want string
	}{
		{StorageConfig{}, "conversiones.db"},
		{StorageConfig{Backend: "sqlite"}, "conversiones.db"},
		{StorageConfig{Backend: "sqlite", Path: "/data/jobs.db"}, "/data/jobs.db"},
		{StorageConfig{Backend: "fs"}, DefaultFSPath},
		{StorageConfig{Backend: "s3", Path: "bucket/prefix"}, "bucket/prefix"},
		{StorageConfig{Backend: "memory"}, ""},
	}
	for _, tt := range tests {
		if got := tt.cfg.ResolvedPath(); got != tt.want {
			t.Errorf("%+v.ResolvedPath() = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
