package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pithecene-io/pressroom/log"
	"github.com/pithecene-io/pressroom/metrics"
)

// Shutdown defaults.
const (
	DefaultHandlerTimeout = 30 * time.Second
	DefaultDrainTimeout   = 10 * time.Second
	DefaultStdinKeyword   = "exit"
)

// Shutdown trigger reasons.
const (
	ReasonSignal  = "signal"
	ReasonStdin   = "stdin"
	ReasonControl = "control"
	ReasonContext = "context"
)

// Drainer stops the persistence worker once everything ahead of the
// sentinel is handled or ctx ends.
type Drainer interface {
	Stop(ctx context.Context) error
}

// NamedCloser is a resource released in the last shutdown step.
type NamedCloser struct {
	Name   string
	Closer io.Closer
}

// ShutdownConfig bounds the shutdown steps.
type ShutdownConfig struct {
	// HandlerTimeout is how long in-flight handlers may run before their
	// connections are force-closed. Zero means DefaultHandlerTimeout.
	HandlerTimeout time.Duration
	// DrainTimeout bounds the persistence drain. Zero means DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// Controller coordinates server shutdown. The first trigger wins; later
// triggers are ignored.
//
// Sequence:
//  1. stop accepting and close every listening socket
//  2. wait for in-flight handlers, force-closing at HandlerTimeout
//  3. queue the worker sentinel and wait for the drain
//  4. close the remaining resources in order and log final metrics
type Controller struct {
	server  *Server
	worker  Drainer
	closers []NamedCloser
	config  ShutdownConfig
	logger  *log.Logger
	metrics *metrics.Collector

	triggered chan struct{}
	once      sync.Once
	mu        sync.Mutex
	reason    string
}

// NewController creates a controller. closers are closed in order after
// the drain. logger and collector may be nil.
func NewController(srv *Server, worker Drainer, closers []NamedCloser, cfg ShutdownConfig, logger *log.Logger, collector *metrics.Collector) *Controller {
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Controller{
		server:    srv,
		worker:    worker,
		closers:   closers,
		config:    cfg,
		logger:    logger,
		metrics:   collector,
		triggered: make(chan struct{}),
	}
}

// Trigger requests shutdown. Safe to call from any goroutine, any number
// of times.
func (c *Controller) Trigger(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		c.logger.Info("shutdown requested", map[string]any{"reason": reason})
		close(c.triggered)
	})
}

// Triggered is closed by the first Trigger.
func (c *Controller) Triggered() <-chan struct{} {
	return c.triggered
}

// Reason returns the first trigger reason, or empty.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// WatchSignals triggers on SIGINT or SIGTERM until ctx ends.
func (c *Controller) WatchSignals(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			c.logger.Info("signal received", map[string]any{"signal": sig.String()})
			c.Trigger(ReasonSignal)
		case <-ctx.Done():
		case <-c.triggered:
		}
	}()
}

// WatchStdin triggers when a line equal to keyword (case-insensitive,
// surrounding whitespace ignored) is read from r. EOF stops watching
// without triggering, so a detached stdin never shuts the server down.
func (c *Controller) WatchStdin(r io.Reader, keyword string) {
	if keyword == "" {
		keyword = DefaultStdinKeyword
	}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if strings.EqualFold(strings.TrimSpace(scanner.Text()), keyword) {
				c.Trigger(ReasonStdin)
				return
			}
		}
	}()
}

// Wait blocks until a trigger or ctx ends, then runs Shutdown.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.triggered:
	case <-ctx.Done():
		c.Trigger(ReasonContext)
	}
	return c.Shutdown()
}

// Shutdown runs the shutdown sequence. Every step runs even if an
// earlier one failed; the errors are joined.
func (c *Controller) Shutdown() error {
	var errs []error
	start := time.Now()

	// 1 + 2: listeners, then handlers.
	if c.server != nil {
		hctx, cancel := context.WithTimeout(context.Background(), c.config.HandlerTimeout)
		forced, err := c.server.Shutdown(hctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("close listeners: %w", err))
		}
		c.logger.Info("handlers finished", map[string]any{"forced": forced})
	}

	// 3: sentinel drain.
	if c.worker != nil {
		dctx, cancel := context.WithTimeout(context.Background(), c.config.DrainTimeout)
		err := c.worker.Stop(dctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("drain persistence queue: %w", err))
		}
	}

	// 4: remaining resources.
	for _, nc := range c.closers {
		if nc.Closer == nil {
			continue
		}
		if err := nc.Closer.Close(); err != nil {
			c.logger.Warn("close failed", map[string]any{"resource": nc.Name, "error": err.Error()})
			errs = append(errs, fmt.Errorf("close %s: %w", nc.Name, err))
		}
	}

	snap := c.metrics.Snapshot()
	c.logger.Info("shutdown complete", map[string]any{
		"reason":             c.Reason(),
		"duration_ms":        time.Since(start).Milliseconds(),
		"jobs_succeeded":     snap.JobsSucceeded,
		"jobs_failed":        snap.JobsFailed,
		"records_persisted":  snap.RecordsPersisted,
		"records_failed":     snap.RecordsFailed,
		"records_dropped":    snap.RecordsDropped,
		"connections_forced": snap.ConnectionsForced,
	})

	return errors.Join(errs...)
}
