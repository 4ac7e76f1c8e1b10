package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/pressroom/adapter"
	"github.com/pithecene-io/pressroom/log"
	"github.com/pithecene-io/pressroom/metrics"
	"github.com/pithecene-io/pressroom/types"
)

// DefaultCapacity is the default queue capacity.
const DefaultCapacity = 1024

// DefaultNotifyTimeout bounds a single notifier call.
const DefaultNotifyTimeout = 10 * time.Second

var (
	// ErrWorkerStopped is returned by Enqueue once Stop has queued the sentinel.
	ErrWorkerStopped = errors.New("persistence worker stopped")
	// ErrDrainTimeout is returned by Stop when the queue did not drain in time.
	ErrDrainTimeout = errors.New("persistence queue did not drain before deadline")
)

// Config configures a Worker.
type Config struct {
	// Capacity bounds the queue. Zero means DefaultCapacity.
	Capacity int

	// PersistTimeout bounds each Append call. Zero means no bound.
	PersistTimeout time.Duration

	// Notifier, if set, is published to after each successful Append.
	// Notification failures are logged and counted, never retried here.
	Notifier adapter.Adapter
	// NotifyTimeout bounds each Publish call. Zero means DefaultNotifyTimeout.
	NotifyTimeout time.Duration

	// InstanceID and StorageBackend are copied into notification events.
	InstanceID     string
	StorageBackend string

	// Logger is an optional logger. If nil, nothing is logged.
	Logger *log.Logger
	// Metrics is an optional collector. Nil-safe.
	Metrics *metrics.Collector
}

// Stats is a point-in-time view of worker counters.
type Stats struct {
	// Enqueued is the number of records accepted by Enqueue.
	Enqueued int64
	// Persisted is the number of records the sink accepted.
	Persisted int64
	// Failed is the number of records the sink rejected.
	Failed int64
	// Dropped is the number of records refused after stop or lost at the
	// drain deadline.
	Dropped int64
	// NotifyFailures is the number of failed notifier calls.
	NotifyFailures int64
	// QueueDepth is the number of records waiting.
	QueueDepth int
	// Stopping is true once the sentinel has been requested.
	Stopping bool
}

// item is a queue entry. stop marks the sentinel.
type item struct {
	rec  *types.ConversionRecord
	stop bool
}

// Worker drains ConversionRecords into a Sink on a single goroutine.
//
// Lifecycle:
//   - Start launches the goroutine; records may be enqueued before Start
//   - Enqueue blocks only while the queue is full
//   - Stop queues the sentinel and waits for everything ahead of it
//
// The sentinel is the only thing that ends the loop. Stop's context bounds
// the wait; on expiry the in-flight Append is canceled and anything still
// queued is counted as dropped.
//
// Thread safety:
//   - mu guards stopping; Enqueue holds it shared across the channel send
//     so no record can land behind the sentinel
//   - stopReq is closed before Stop takes mu, releasing Enqueue calls that
//     are blocked on a full queue
//   - counters are atomic
type Worker struct {
	sink   Sink
	config Config
	logger *log.Logger

	queue chan item

	mu       sync.RWMutex
	stopping bool
	stopReq  chan struct{}
	stopOnce sync.Once

	runCtx    context.Context
	cancelRun context.CancelFunc
	startOnce sync.Once
	done      chan struct{}

	enqueued       atomic.Int64
	persisted      atomic.Int64
	failed         atomic.Int64
	dropped        atomic.Int64
	notifyFailures atomic.Int64
}

// NewWorker creates a worker writing to sink. Call Start to begin draining.
func NewWorker(sink Sink, config Config) *Worker {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = DefaultNotifyTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Worker{
		sink:      sink,
		config:    config,
		logger:    logger,
		queue:     make(chan item, config.Capacity),
		stopReq:   make(chan struct{}),
		runCtx:    runCtx,
		cancelRun: cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. Later calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// Enqueue hands rec to the worker. The caller must not touch rec afterwards.
//
// Errors:
//   - ErrWorkerStopped: Stop was called; rec is counted as dropped
//   - ctx.Err(): the queue stayed full until ctx ended; rec is counted as dropped
func (w *Worker) Enqueue(ctx context.Context, rec *types.ConversionRecord) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopping {
		w.drop(1)
		return ErrWorkerStopped
	}

	select {
	case w.queue <- item{rec: rec}:
		w.enqueued.Add(1)
		w.config.Metrics.IncRecordsEnqueued()
		w.config.Metrics.SetQueueDepth(len(w.queue))
		return nil
	case <-w.stopReq:
		w.drop(1)
		return ErrWorkerStopped
	case <-ctx.Done():
		w.drop(1)
		return ctx.Err()
	}
}

// Stop queues the sentinel and waits until every record ahead of it has been
// handled or ctx ends. Stop is safe to call more than once.
//
// Returns ErrDrainTimeout if ctx ended first.
func (w *Worker) Stop(ctx context.Context) error {
	w.Start()

	first := false
	w.stopOnce.Do(func() {
		first = true
		close(w.stopReq)
		w.mu.Lock()
		w.stopping = true
		w.mu.Unlock()
	})

	if first {
		select {
		case w.queue <- item{stop: true}:
		case <-ctx.Done():
			return w.abandon()
		}
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return w.abandon()
	}
}

// abandon cancels the in-flight Append and makes the loop exit without
// handling what is left.
func (w *Worker) abandon() error {
	w.cancelRun()
	w.logger.Warn("persistence queue abandoned at drain deadline", map[string]any{
		"queue_depth": len(w.queue),
	})
	return ErrDrainTimeout
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats returns a snapshot of worker counters.
func (w *Worker) Stats() Stats {
	w.mu.RLock()
	stopping := w.stopping
	w.mu.RUnlock()

	return Stats{
		Enqueued:       w.enqueued.Load(),
		Persisted:      w.persisted.Load(),
		Failed:         w.failed.Load(),
		Dropped:        w.dropped.Load(),
		NotifyFailures: w.notifyFailures.Load(),
		QueueDepth:     len(w.queue),
		Stopping:       stopping,
	}
}

func (w *Worker) drop(n int64) {
	w.dropped.Add(n)
	for range n {
		w.config.Metrics.IncRecordsDropped()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for {
		if w.runCtx.Err() != nil {
			w.dropRemaining()
			return
		}

		select {
		case it := <-w.queue:
			w.config.Metrics.SetQueueDepth(len(w.queue))
			if it.stop {
				w.logger.Info("persistence worker drained", map[string]any{
					"persisted": w.persisted.Load(),
					"failed":    w.failed.Load(),
				})
				return
			}
			w.persist(it.rec)
		case <-w.runCtx.Done():
			w.dropRemaining()
			return
		}
	}
}

// dropRemaining empties the queue after abandon. The sentinel is not counted.
func (w *Worker) dropRemaining() {
	var remaining int64
	for len(w.queue) > 0 {
		if it := <-w.queue; !it.stop {
			remaining++
		}
	}
	w.drop(remaining)
	w.config.Metrics.SetQueueDepth(0)
}

func (w *Worker) persist(rec *types.ConversionRecord) {
	ctx := w.runCtx
	if w.config.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.PersistTimeout)
		defer cancel()
	}

	if err := w.sink.Append(ctx, rec); err != nil {
		w.failed.Add(1)
		w.config.Metrics.IncRecordsFailed()
		jobErr := types.NewJobError(types.ErrorPersistenceFailed, "record not persisted", err)
		w.logger.Error("record persistence failed", map[string]any{
			"kind":   string(jobErr.Kind),
			"job_id": rec.JobID,
			"error":  jobErr.Error(),
		})
		return
	}

	w.persisted.Add(1)
	w.config.Metrics.IncRecordsPersisted()
	w.logger.Debug("record persisted", map[string]any{
		"job_id":    rec.JobID,
		"base_name": rec.BaseFileName,
	})

	w.notify(rec)
}

func (w *Worker) notify(rec *types.ConversionRecord) {
	if w.config.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(w.runCtx, w.config.NotifyTimeout)
	defer cancel()

	event := adapter.NewConversionCompletedEvent(rec, w.config.InstanceID, w.config.StorageBackend)
	if err := w.config.Notifier.Publish(ctx, event); err != nil {
		w.notifyFailures.Add(1)
		w.config.Metrics.IncNotifyFailures()
		w.logger.Warn("completion notification failed", map[string]any{
			"job_id": rec.JobID,
			"error":  err.Error(),
		})
	}
}
