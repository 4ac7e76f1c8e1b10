package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/pressroom/types"
)

func TestLogger_InstanceContext(t *testing.T) {
	meta := &types.ServerMeta{InstanceID: "inst-1", Version: "0.3.0"}
	var buf bytes.Buffer
	logger := NewLogger(meta).WithOutput(&buf)

	logger.Info("listening", map[string]any{"addr": "127.0.0.1:5000"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["instance_id"] != "inst-1" || entry["version"] != "0.3.0" {
		t.Errorf("missing instance context: %v", entry)
	}
	if entry["message"] != "listening" || entry["level"] != "info" {
		t.Errorf("unexpected entry: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["addr"] != "127.0.0.1:5000" {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&types.ServerMeta{InstanceID: "i"}).WithOutput(&buf).
		With(map[string]any{"session_id": "s-1"})

	logger.Warn("peer gone", nil)
	if !strings.Contains(buf.String(), `"session_id":"s-1"`) {
		t.Errorf("session field missing: %s", buf.String())
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithLevel(&types.ServerMeta{}, "warn").WithOutput(&buf)

	logger.Info("dropped", nil)
	logger.Error("kept", nil)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("error entry missing")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
