package reader

import (
	"fmt"
	"time"

	"github.com/pithecene-io/pressroom/ipc"
	"github.com/pithecene-io/pressroom/types"
)

// NewServerStats converts a control socket stats frame into the view.
// now is used to derive the uptime.
func NewServerStats(s *ipc.Stats, now time.Time) *ServerStats {
	if s == nil {
		return nil
	}

	byKind := make(map[string]int64, len(s.FailedByKind))
	for k, v := range s.FailedByKind {
		byKind[k] = v
	}

	return &ServerStats{
		InstanceID:     s.InstanceID,
		Version:        s.Version,
		StartedAt:      s.StartedAt,
		Uptime:         uptime(s.StartedAt, now),
		Renderer:       s.Renderer,
		StorageBackend: s.StorageBackend,
		ShuttingDown:   s.ShuttingDown,

		ConnectionsActive:   s.ConnectionsActive,
		ConnectionsAccepted: s.ConnectionsAccepted,
		ConnectionsForced:   s.ConnectionsForced,
		AcceptErrors:        s.AcceptErrors,

		JobsSucceeded: s.JobsSucceeded,
		JobsFailed:    s.JobsFailed,
		SuccessRate:   successRate(s.JobsSucceeded, s.JobsFailed),
		FailedByKind:  byKind,
		BytesReceived: s.BytesReceived,
		BytesSent:     s.BytesSent,

		RecordsEnqueued:  s.RecordsEnqueued,
		RecordsPersisted: s.RecordsPersisted,
		RecordsFailed:    s.RecordsFailed,
		RecordsDropped:   s.RecordsDropped,
		QueueDepth:       s.QueueDepth,
		NotifyFailures:   s.NotifyFailures,
	}
}

// uptime renders the time since startedAt rounded to seconds. An
// unparseable start time yields an empty string.
func uptime(startedAt string, now time.Time) string {
	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return ""
	}
	d := now.Sub(started)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

// successRate is the share of finished jobs that succeeded, or "n/a"
// before any job has finished.
func successRate(succeeded, failed int64) string {
	total := succeeded + failed
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(succeeded)*100/float64(total))
}

// NewRecordView converts a stored record into the view.
func NewRecordView(rec *types.ConversionRecord) RecordView {
	return RecordView{
		JobID:       rec.JobID,
		Timestamp:   rec.Timestamp.UTC(),
		Source:      rec.SourceAddress,
		FileName:    rec.BaseFileName + types.SourceExtension,
		InputBytes:  rec.InputSizeBytes,
		OutputBytes: rec.OutputSizeBytes,
		InputDigest: rec.InputDigest,
	}
}

// NewRecordViews converts a record listing, preserving order.
func NewRecordViews(recs []*types.ConversionRecord) []RecordView {
	out := make([]RecordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, NewRecordView(rec))
	}
	return out
}
