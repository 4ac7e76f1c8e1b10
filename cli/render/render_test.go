package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/pressroom/cli/reader"
)

func stubStats(t *testing.T) *reader.ServerStats {
	t.Helper()
	stats, err := reader.NewStubReader().Stats(t.Context())
	if err != nil {
		t.Fatalf("stub Stats failed: %v", err)
	}
	return stats
}

func stubRecords(t *testing.T) []reader.RecordView {
	t.Helper()
	records, err := reader.NewStubReader().Records(t.Context(), reader.RecordsOptions{})
	if err != nil {
		t.Fatalf("stub Records failed: %v", err)
	}
	return records
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json":  FormatJSON,
		"JSON":  FormatJSON,
		"Table": FormatTable,
		"yaml":  FormatYAML,
		"":      "",
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}

	for _, in := range []string{"xml", "csv", "tabel"} {
		_, err := ParseFormat(in)
		if err == nil || !strings.Contains(err.Error(), "json, table, or yaml") {
			t.Errorf("ParseFormat(%q) error = %v, want the accepted formats listed", in, err)
		}
	}
}

func TestRenderer_JSONStats(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatJSON, &buf).Render(stubStats(t)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got["instance_id"] != "stub-instance" || got["jobs_succeeded"] != float64(100) {
		t.Errorf("decoded stats = %v", got)
	}
}

func TestRenderer_YAMLRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatYAML, &buf).Render(stubRecords(t)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if strings.Count(got, "- ") != 2 || !strings.Contains(got, "stub-job-001") {
		t.Errorf("yaml output should list both records:\n%s", got)
	}
}

func TestRenderer_TableStats(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, &buf).Render(stubStats(t)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"instance_id:",
		"stub-instance",
		"success_rate:",
		"connection_lost=1, validation_failed=3",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stats table missing %q:\n%s", want, got)
		}
	}
}

func TestRenderer_TableRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, &buf).Render(stubRecords(t)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and two rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "job_id") || !strings.Contains(lines[0], "file_name") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "stub-job-001") || !strings.Contains(lines[2], "2026-02-03T15:00:00Z") {
		t.Errorf("second row = %q", lines[2])
	}
}

func TestRenderer_TableNoRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, &buf).Render([]reader.RecordView{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "(no results)" {
		t.Errorf("output = %q, want (no results)", got)
	}
}

func TestRenderer_TableFieldNames(t *testing.T) {
	type row struct {
		Digest  string `json:"input_digest,omitempty"`
		Skipped string `json:"-"`
		Plain   int
		At      *time.Time `json:"at"`
		Kinds   map[string]int
		hidden  string
	}

	var buf bytes.Buffer
	data := &row{Digest: "abc", Skipped: "nope", Plain: 4, Kinds: map[string]int{}, hidden: "x"}
	if err := NewRendererWithWriter(FormatTable, &buf).Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	for _, want := range []string{"input_digest:", "abc", "plain:", "at:", "kinds:", "{}"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"nope", "hidden", "omitempty"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("table should not contain %q:\n%s", unwanted, got)
		}
	}
}

func TestRenderer_RenderTUIUnsupported(t *testing.T) {
	err := NewRendererWithWriter(FormatTable, &bytes.Buffer{}).RenderTUI("version", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "--tui is not supported") {
		t.Errorf("RenderTUI = %v, want unsupported error", err)
	}
}
