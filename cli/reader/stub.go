package reader

import (
	"context"
	"time"
)

// StubReader returns fixed data for rendering and command tests.
type StubReader struct {
	// StatsErr and RecordsErr, if set, are returned instead of data.
	StatsErr   error
	RecordsErr error
	// RecordsData overrides the default records.
	RecordsData []RecordView
	// LastOptions is the most recent RecordsOptions passed to Records.
	LastOptions RecordsOptions
}

// NewStubReader creates a new stub reader.
func NewStubReader() *StubReader {
	return &StubReader{}
}

// Stats returns stub statistics.
func (r *StubReader) Stats(_ context.Context) (*ServerStats, error) {
	if r.StatsErr != nil {
		return nil, r.StatsErr
	}
	return &ServerStats{
		InstanceID:          "stub-instance",
		Version:             "0.0.0-stub",
		StartedAt:           "2026-02-03T15:00:00Z",
		Uptime:              "1h0m0s",
		Renderer:            "fpdf",
		StorageBackend:      "sqlite",
		ConnectionsActive:   2,
		ConnectionsAccepted: 120,
		JobsSucceeded:       100,
		JobsFailed:          4,
		SuccessRate:         "96.2%",
		FailedByKind:        map[string]int64{"validation_failed": 3, "connection_lost": 1},
		BytesReceived:       524288,
		BytesSent:           2097152,
		RecordsEnqueued:     100,
		RecordsPersisted:    100,
	}, nil
}

// Records returns stub records, honoring Limit.
func (r *StubReader) Records(_ context.Context, opts RecordsOptions) ([]RecordView, error) {
	r.LastOptions = opts
	if r.RecordsErr != nil {
		return nil, r.RecordsErr
	}

	data := r.RecordsData
	if data == nil {
		ts := time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC)
		data = []RecordView{
			{JobID: "stub-job-002", Timestamp: ts.Add(time.Minute), Source: "127.0.0.1", FileName: "notes.txt", InputBytes: 42, OutputBytes: 1380},
			{JobID: "stub-job-001", Timestamp: ts, Source: "::1", FileName: "report.txt", InputBytes: 2048, OutputBytes: 3112},
		}
	}
	if opts.Limit > 0 && len(data) > opts.Limit {
		data = data[:opts.Limit]
	}
	return data, nil
}

var _ Reader = (*StubReader)(nil)
