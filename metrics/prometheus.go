package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pressroom"

type counterDef struct {
	desc  *prometheus.Desc
	typ   prometheus.ValueType
	value func(*Snapshot) int64
}

// Exporter exposes a Collector to Prometheus.
// Every scrape takes one Snapshot so all series are mutually consistent.
type Exporter struct {
	collector *Collector
	defs      []counterDef
	failed    *prometheus.Desc
	info      *prometheus.Desc
}

// Verify Exporter implements prometheus.Collector.
var _ prometheus.Collector = (*Exporter)(nil)

func counter(name, help string, value func(*Snapshot) int64) counterDef {
	return counterDef{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
		typ:   prometheus.CounterValue,
		value: value,
	}
}

func gauge(name, help string, value func(*Snapshot) int64) counterDef {
	return counterDef{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
		typ:   prometheus.GaugeValue,
		value: value,
	}
}

// NewExporter creates an Exporter reading from c.
func NewExporter(c *Collector) *Exporter {
	return &Exporter{
		collector: c,
		defs: []counterDef{
			counter("connections_accepted_total", "Connections accepted.", func(s *Snapshot) int64 { return s.ConnectionsAccepted }),
			gauge("connections_active", "Connections currently being handled.", func(s *Snapshot) int64 { return s.ConnectionsActive }),
			counter("connections_forced_total", "Connections force-closed at the shutdown deadline.", func(s *Snapshot) int64 { return s.ConnectionsForced }),
			counter("accept_errors_total", "Failed accept calls.", func(s *Snapshot) int64 { return s.AcceptErrors }),
			counter("jobs_succeeded_total", "Jobs that delivered their artifact.", func(s *Snapshot) int64 { return s.JobsSucceeded }),
			counter("bytes_received_total", "Document bytes received from clients.", func(s *Snapshot) int64 { return s.BytesReceived }),
			counter("bytes_sent_total", "Artifact bytes sent to clients.", func(s *Snapshot) int64 { return s.BytesSent }),
			counter("conversions_succeeded_total", "Successful renderer invocations.", func(s *Snapshot) int64 { return s.ConversionSuccess }),
			counter("conversions_failed_total", "Failed renderer invocations.", func(s *Snapshot) int64 { return s.ConversionFailure }),
			counter("records_enqueued_total", "Records accepted by the persistence queue.", func(s *Snapshot) int64 { return s.RecordsEnqueued }),
			counter("records_persisted_total", "Records written to the store.", func(s *Snapshot) int64 { return s.RecordsPersisted }),
			counter("records_failed_total", "Records the store rejected.", func(s *Snapshot) int64 { return s.RecordsFailed }),
			counter("records_dropped_total", "Records refused after the worker stopped.", func(s *Snapshot) int64 { return s.RecordsDropped }),
			gauge("queue_depth", "Records waiting in the persistence queue.", func(s *Snapshot) int64 { return s.QueueDepth }),
			counter("notify_failures_total", "Failed completion notifications.", func(s *Snapshot) int64 { return s.NotifyFailures }),
			counter("store_writes_succeeded_total", "Successful store write calls.", func(s *Snapshot) int64 { return s.StoreWriteSuccess }),
			counter("store_writes_failed_total", "Failed store write calls.", func(s *Snapshot) int64 { return s.StoreWriteFailure }),
			counter("audit_write_failures_total", "Audit lines that could not be written.", func(s *Snapshot) int64 { return s.AuditWriteFailures }),
		},
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_failed_total"),
			"Failed jobs by error kind.",
			[]string{"kind"}, nil,
		),
		info: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "server_info"),
			"Server dimensions. Always 1.",
			[]string{"renderer", "storage_backend", "instance_id"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.defs {
		ch <- d.desc
	}
	ch <- e.failed
	ch <- e.info
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.collector.Snapshot()

	for _, d := range e.defs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.typ, float64(d.value(&s)))
	}

	kinds := make([]string, 0, len(s.FailedByKind))
	for k := range s.FailedByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(e.failed, prometheus.CounterValue, float64(s.FailedByKind[k]), k)
	}

	ch <- prometheus.MustNewConstMetric(e.info, prometheus.GaugeValue, 1, s.Renderer, s.StorageBackend, s.InstanceID)
}

// Handler returns an HTTP handler serving c in the Prometheus exposition
// format. A private registry is used so tests can build several handlers.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewExporter(c)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

// NewServeMux returns a mux serving metrics at /metrics and a liveness probe
// at /health.
func NewServeMux(c *Collector) (*http.ServeMux, error) {
	h, err := Handler(c)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux, nil
}
