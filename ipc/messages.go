package ipc

// Commands understood by the control server.
const (
	CommandPing     = "ping"
	CommandStats    = "stats"
	CommandShutdown = "shutdown"
)

// Request is a control request frame.
type Request struct {
	Command string `msgpack:"command"`
}

// Response is a control response frame.
type Response struct {
	Command string `msgpack:"command"`
	OK      bool   `msgpack:"ok"`
	Error   string `msgpack:"error,omitempty"`
	Stats   *Stats `msgpack:"stats,omitempty"`
}

// Stats is a point-in-time view of a running server.
type Stats struct {
	InstanceID     string `msgpack:"instance_id"`
	Version        string `msgpack:"version"`
	StartedAt      string `msgpack:"started_at"` // RFC 3339
	Renderer       string `msgpack:"renderer"`
	StorageBackend string `msgpack:"storage_backend"`
	ShuttingDown   bool   `msgpack:"shutting_down"`

	ConnectionsActive   int64 `msgpack:"connections_active"`
	ConnectionsAccepted int64 `msgpack:"connections_accepted"`
	ConnectionsForced   int64 `msgpack:"connections_forced"`
	AcceptErrors        int64 `msgpack:"accept_errors"`

	JobsSucceeded int64            `msgpack:"jobs_succeeded"`
	JobsFailed    int64            `msgpack:"jobs_failed"`
	FailedByKind  map[string]int64 `msgpack:"failed_by_kind"`
	BytesReceived int64            `msgpack:"bytes_received"`
	BytesSent     int64            `msgpack:"bytes_sent"`

	RecordsEnqueued  int64 `msgpack:"records_enqueued"`
	RecordsPersisted int64 `msgpack:"records_persisted"`
	RecordsFailed    int64 `msgpack:"records_failed"`
	RecordsDropped   int64 `msgpack:"records_dropped"`
	QueueDepth       int64 `msgpack:"queue_depth"`
	NotifyFailures   int64 `msgpack:"notify_failures"`
}
