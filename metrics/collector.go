// Package metrics provides server-lifetime metrics collection.
//
// The Collector accumulates counters while the server runs. It is a leaf
// package with no internal dependencies; job error kinds are string-typed to
// keep it free of the types package. Exposition lives in prometheus.go.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all server metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Connections
	ConnectionsAccepted int64
	ConnectionsActive   int64
	ConnectionsForced   int64
	AcceptErrors        int64

	// Jobs
	JobsSucceeded int64
	JobsFailed    int64
	FailedByKind  map[string]int64
	BytesReceived int64
	BytesSent     int64

	// Conversion
	ConversionSuccess int64
	ConversionFailure int64

	// Persistence
	RecordsEnqueued  int64
	RecordsPersisted int64
	RecordsFailed    int64
	RecordsDropped   int64
	QueueDepth       int64
	NotifyFailures   int64

	// Store (per write call)
	StoreWriteSuccess int64
	StoreWriteFailure int64

	// Audit
	AuditWriteFailures int64

	// Dimensions (informational, set at construction)
	Renderer       string
	StorageBackend string
	InstanceID     string
}

// Collector accumulates metrics for the lifetime of a server.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	connectionsAccepted int64
	connectionsActive   int64
	connectionsForced   int64
	acceptErrors        int64

	jobsSucceeded int64
	jobsFailed    int64
	failedByKind  map[string]int64
	bytesReceived int64
	bytesSent     int64

	conversionSuccess int64
	conversionFailure int64

	recordsEnqueued  int64
	recordsPersisted int64
	recordsFailed    int64
	recordsDropped   int64
	queueDepth       int64
	notifyFailures   int64

	storeWriteSuccess int64
	storeWriteFailure int64

	auditWriteFailures int64

	renderer       string
	storageBackend string
	instanceID     string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(renderer, storageBackend, instanceID string) *Collector {
	return &Collector{
		failedByKind:   make(map[string]int64),
		renderer:       renderer,
		storageBackend: storageBackend,
		instanceID:     instanceID,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Connections ---

// ConnectionOpened records an accepted connection and raises the active gauge.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.connectionsAccepted++
	c.connectionsActive++
	c.mu.Unlock()
}

// ConnectionClosed lowers the active gauge.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.add(&c.connectionsActive, -1)
}

// IncConnectionsForced records a connection closed at the shutdown deadline.
func (c *Collector) IncConnectionsForced() {
	if c == nil {
		return
	}
	c.add(&c.connectionsForced, 1)
}

// IncAcceptErrors records a failed accept call.
func (c *Collector) IncAcceptErrors() {
	if c == nil {
		return
	}
	c.add(&c.acceptErrors, 1)
}

// --- Jobs ---

// IncJobSucceeded records a job that delivered its artifact.
func (c *Collector) IncJobSucceeded() {
	if c == nil {
		return
	}
	c.add(&c.jobsSucceeded, 1)
}

// IncJobFailed records a failed job under its error kind.
func (c *Collector) IncJobFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsFailed++
	c.failedByKind[kind]++
	c.mu.Unlock()
}

// AddBytesReceived records body bytes read from clients.
func (c *Collector) AddBytesReceived(n int64) {
	if c == nil {
		return
	}
	c.add(&c.bytesReceived, n)
}

// AddBytesSent records artifact bytes written to clients.
func (c *Collector) AddBytesSent(n int64) {
	if c == nil {
		return
	}
	c.add(&c.bytesSent, n)
}

// --- Conversion ---

// IncConversionSuccess records a successful renderer invocation.
func (c *Collector) IncConversionSuccess() {
	if c == nil {
		return
	}
	c.add(&c.conversionSuccess, 1)
}

// IncConversionFailure records a failed renderer invocation.
func (c *Collector) IncConversionFailure() {
	if c == nil {
		return
	}
	c.add(&c.conversionFailure, 1)
}

// --- Persistence ---

// IncRecordsEnqueued records a record accepted by the worker queue.
func (c *Collector) IncRecordsEnqueued() {
	if c == nil {
		return
	}
	c.add(&c.recordsEnqueued, 1)
}

// IncRecordsPersisted records a record written to the store.
func (c *Collector) IncRecordsPersisted() {
	if c == nil {
		return
	}
	c.add(&c.recordsPersisted, 1)
}

// IncRecordsFailed records a record the store rejected.
func (c *Collector) IncRecordsFailed() {
	if c == nil {
		return
	}
	c.add(&c.recordsFailed, 1)
}

// IncRecordsDropped records a record refused after the worker stopped.
func (c *Collector) IncRecordsDropped() {
	if c == nil {
		return
	}
	c.add(&c.recordsDropped, 1)
}

// SetQueueDepth sets the current worker queue depth.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.queueDepth = int64(n)
	c.mu.Unlock()
}

// IncNotifyFailures records a failed completion notification.
func (c *Collector) IncNotifyFailures() {
	if c == nil {
		return
	}
	c.add(&c.notifyFailures, 1)
}

// --- Store ---
// Store counters are per write call, not per record.

// IncStoreWriteSuccess records a successful store write.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.storeWriteSuccess, 1)
}

// IncStoreWriteFailure records a failed store write.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.storeWriteFailure, 1)
}

// --- Audit ---

// IncAuditWriteFailures records an audit line that could not be written.
func (c *Collector) IncAuditWriteFailures() {
	if c == nil {
		return
	}
	c.add(&c.auditWriteFailures, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.failedByKind))
	for k, v := range c.failedByKind {
		byKind[k] = v
	}

	return Snapshot{
		ConnectionsAccepted: c.connectionsAccepted,
		ConnectionsActive:   c.connectionsActive,
		ConnectionsForced:   c.connectionsForced,
		AcceptErrors:        c.acceptErrors,

		JobsSucceeded: c.jobsSucceeded,
		JobsFailed:    c.jobsFailed,
		FailedByKind:  byKind,
		BytesReceived: c.bytesReceived,
		BytesSent:     c.bytesSent,

		ConversionSuccess: c.conversionSuccess,
		ConversionFailure: c.conversionFailure,

		RecordsEnqueued:  c.recordsEnqueued,
		RecordsPersisted: c.recordsPersisted,
		RecordsFailed:    c.recordsFailed,
		RecordsDropped:   c.recordsDropped,
		QueueDepth:       c.queueDepth,
		NotifyFailures:   c.notifyFailures,

		StoreWriteSuccess: c.storeWriteSuccess,
		StoreWriteFailure: c.storeWriteFailure,

		AuditWriteFailures: c.auditWriteFailures,

		Renderer:       c.renderer,
		StorageBackend: c.storageBackend,
		InstanceID:     c.instanceID,
	}
}
