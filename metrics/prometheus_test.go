package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExporter_Counters(t *testing.T) {
	c := NewCollector("fpdf", "sqlite", "inst-1")
	c.IncJobSucceeded()
	c.IncJobSucceeded()
	c.IncJobFailed("validation_failed")
	c.IncJobFailed("connection_lost")
	c.IncJobFailed("connection_lost")

	expected := `
# HELP pressroom_jobs_succeeded_total Jobs that delivered their artifact.
# TYPE pressroom_jobs_succeeded_total counter
pressroom_jobs_succeeded_total 2
# HELP pressroom_jobs_failed_total Failed jobs by error kind.
# TYPE pressroom_jobs_failed_total counter
pressroom_jobs_failed_total{kind="connection_lost"} 2
pressroom_jobs_failed_total{kind="validation_failed"} 1
`
	err := testutil.CollectAndCompare(NewExporter(c), strings.NewReader(expected),
		"pressroom_jobs_succeeded_total", "pressroom_jobs_failed_total")
	if err != nil {
		t.Errorf("CollectAndCompare failed: %v", err)
	}
}

func TestExporter_Info(t *testing.T) {
	c := NewCollector("command", "s3", "inst-9")

	expected := `
# HELP pressroom_server_info Server dimensions. Always 1.
# TYPE pressroom_server_info gauge
pressroom_server_info{instance_id="inst-9",renderer="command",storage_backend="s3"} 1
`
	if err := testutil.CollectAndCompare(NewExporter(c), strings.NewReader(expected), "pressroom_server_info"); err != nil {
		t.Errorf("CollectAndCompare failed: %v", err)
	}
}

func TestExporter_SeriesCount(t *testing.T) {
	c := NewCollector("fpdf", "fs", "inst-1")
	e := NewExporter(c)

	// One series per definition plus server_info; no failure kinds yet.
	if got, want := testutil.CollectAndCount(e), len(e.defs)+1; got != want {
		t.Errorf("CollectAndCount = %d, want %d", got, want)
	}

	c.IncJobFailed("conversion_failed")
	if got, want := testutil.CollectAndCount(e), len(e.defs)+2; got != want {
		t.Errorf("CollectAndCount = %d, want %d", got, want)
	}
}

func TestServeMux(t *testing.T) {
	c := NewCollector("fpdf", "fs", "inst-1")
	c.SetQueueDepth(3)

	mux, err := NewServeMux(c)
	if err != nil {
		t.Fatalf("NewServeMux failed: %v", err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "pressroom_queue_depth 3") {
		t.Errorf("queue depth missing from exposition:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
