// Package reader provides the read-side data access layer for the pressroom CLI.
//
// Read-only commands never touch server internals directly. Live figures
// come from the control socket; persisted records come from the configured
// record store. Both are converted into the view types below, which carry
// the json tags the renderer uses for every output format.
package reader

import "time"

// ServerStats is the stats view of a running server.
type ServerStats struct {
	InstanceID     string `json:"instance_id"`
	Version        string `json:"version"`
	StartedAt      string `json:"started_at"`
	Uptime         string `json:"uptime"`
	Renderer       string `json:"renderer"`
	StorageBackend string `json:"storage_backend"`
	ShuttingDown   bool   `json:"shutting_down"`

	ConnectionsActive   int64 `json:"connections_active"`
	ConnectionsAccepted int64 `json:"connections_accepted"`
	ConnectionsForced   int64 `json:"connections_forced"`
	AcceptErrors        int64 `json:"accept_errors"`

	JobsSucceeded int64            `json:"jobs_succeeded"`
	JobsFailed    int64            `json:"jobs_failed"`
	SuccessRate   string           `json:"success_rate"`
	FailedByKind  map[string]int64 `json:"failed_by_kind"`
	BytesReceived int64            `json:"bytes_received"`
	BytesSent     int64            `json:"bytes_sent"`

	RecordsEnqueued  int64 `json:"records_enqueued"`
	RecordsPersisted int64 `json:"records_persisted"`
	RecordsFailed    int64 `json:"records_failed"`
	RecordsDropped   int64 `json:"records_dropped"`
	QueueDepth       int64 `json:"queue_depth"`
	NotifyFailures   int64 `json:"notify_failures"`
}

// RecordView is one persisted conversion record.
type RecordView struct {
	JobID       string    `json:"job_id"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	FileName    string    `json:"file_name"`
	InputBytes  int64     `json:"input_bytes"`
	OutputBytes int64     `json:"output_bytes"`
	InputDigest string    `json:"input_digest,omitempty"`
}

// RecordsOptions filters a records listing.
type RecordsOptions struct {
	// Day restricts results to one UTC day (YYYY-MM-DD). Empty means all.
	Day string
	// Limit caps the number of results. Zero means no cap.
	Limit int
}
