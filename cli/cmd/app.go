package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lodelibrary "github.com/justapithecus/lode/lode"
	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/pressroom/adapter"
	redisadapter "github.com/pithecene-io/pressroom/adapter/redis"
	"github.com/pithecene-io/pressroom/adapter/webhook"
	"github.com/pithecene-io/pressroom/audit"
	"github.com/pithecene-io/pressroom/cli/config"
	"github.com/pithecene-io/pressroom/convert"
	"github.com/pithecene-io/pressroom/ipc"
	"github.com/pithecene-io/pressroom/lode"
	"github.com/pithecene-io/pressroom/log"
	"github.com/pithecene-io/pressroom/metrics"
	"github.com/pithecene-io/pressroom/persist"
	"github.com/pithecene-io/pressroom/server"
	"github.com/pithecene-io/pressroom/sqlite"
	"github.com/pithecene-io/pressroom/types"
)

// defaultAdapterRetries applies when the config leaves adapter.retries unset.
const defaultAdapterRetries = 3

// reasonServeFailed triggers shutdown when the accept loops fail.
const reasonServeFailed = "serve_failed"

// App is a fully wired server process: conversion server, persistence
// worker, record store, notifier, audit log, control socket, and the
// optional metrics endpoint.
type App struct {
	config    *config.Config
	meta      *types.ServerMeta
	startedAt time.Time
	stdin     io.Reader

	logger     *log.Logger
	collector  *metrics.Collector
	worker     *persist.Worker
	invoker    *convert.Invoker
	server     *server.Server
	control    *ipc.ControlServer
	metricsSrv *http.Server
	metricsLn  net.Listener
	controller *server.Controller
}

// Build wires every component from cfg and binds the listening sockets.
// stdin, if non-nil, is watched for the shutdown keyword. On failure,
// everything built so far is released.
func Build(ctx context.Context, cfg *config.Config, stdin io.Reader) (_ *App, err error) {
	var cleanup []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i]()
		}
	}()

	meta := &types.ServerMeta{InstanceID: uuid.NewString(), Version: types.Version}
	logger := log.NewLoggerWithLevel(meta, cfg.LogLevel)
	collector := metrics.NewCollector(cfg.Renderer.Type, cfg.Storage.Backend, meta.InstanceID)

	a := &App{
		config:    cfg,
		meta:      meta,
		startedAt: time.Now().UTC(),
		stdin:     stdin,
		logger:    logger,
		collector: collector,
	}

	sink, err := openSink(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	cleanup = append(cleanup, sink.Close)

	notifier, err := openNotifier(cfg.Adapter)
	if err != nil {
		return nil, fmt.Errorf("create notifier: %w", err)
	}
	if notifier != nil {
		cleanup = append(cleanup, notifier.Close)
	}

	a.worker = persist.NewWorker(persist.NewInstrumentedSink(sink, collector), persist.Config{
		Capacity:       cfg.Queue.Capacity,
		PersistTimeout: cfg.Queue.PersistTimeout.Duration,
		Notifier:       notifier,
		InstanceID:     meta.InstanceID,
		StorageBackend: cfg.Storage.Backend,
		Logger:         logger,
		Metrics:        collector,
	})

	auditPath := cfg.AuditLog
	if auditPath == "" {
		auditPath = audit.DefaultPath
	}
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, auditLog.Close)

	renderer, err := convert.NewRenderer(convert.RendererConfig{
		Type:     cfg.Renderer.Type,
		Command:  cfg.Renderer.Command,
		FontSize: cfg.Renderer.FontSize,
	})
	if err != nil {
		return nil, err
	}

	a.invoker = convert.NewInvoker(renderer, logger, collector)

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "pressroom")
	}
	a.server, err = server.New(server.Config{
		Host:           cfg.Listen.Host,
		Port:           cfg.Listen.Port,
		TempDir:        tempDir,
		MaxConnections: cfg.MaxConnections,
		IOTimeout:      cfg.IOTimeout.Duration,
		MaxFileSize:    cfg.MaxFileSize,
	}, server.Deps{
		Converter: a.invoker,
		Recorder:  a.worker,
		Auditor:   auditLog,
		Logger:    logger,
		Metrics:   collector,
	})
	if err != nil {
		return nil, err
	}
	if err := a.server.Listen(ctx); err != nil {
		return nil, err
	}
	cleanup = append(cleanup, a.server.CloseListeners)

	a.control, err = ipc.Listen(cfg.ControlSocket, a, logger)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, a.control.Close)

	if cfg.MetricsAddr != "" {
		mux, err := metrics.NewServeMux(collector)
		if err != nil {
			return nil, fmt.Errorf("build metrics handler: %w", err)
		}
		a.metricsLn, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return nil, fmt.Errorf("listen for metrics on %s: %w", cfg.MetricsAddr, err)
		}
		cleanup = append(cleanup, a.metricsLn.Close)
		a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	closers := []server.NamedCloser{
		{Name: "notifier", Closer: notifier},
		{Name: "store", Closer: sink},
		{Name: "audit", Closer: auditLog},
		{Name: "control", Closer: a.control},
	}
	if a.metricsSrv != nil {
		closers = append(closers, server.NamedCloser{Name: "metrics", Closer: a.metricsSrv})
	}

	a.controller = server.NewController(a.server, a.worker, closers, server.ShutdownConfig{
		HandlerTimeout: cfg.Shutdown.HandlerTimeout.Duration,
		DrainTimeout:   cfg.Queue.DrainTimeout.Duration,
	}, logger, collector)

	return a, nil
}

// Run starts the worker and every listener, then blocks until a shutdown
// trigger (signal, stdin keyword, control command, or ctx) has been fully
// handled.
func (a *App) Run(ctx context.Context) error {
	a.worker.Start()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		err := a.server.Serve(runCtx)
		if err != nil {
			a.logger.Error("server stopped unexpectedly", map[string]any{"error": err.Error()})
			a.controller.Trigger(reasonServeFailed)
		}
		return err
	})
	g.Go(func() error {
		return a.control.Serve(runCtx)
	})
	if a.metricsSrv != nil {
		a.logger.Info("metrics listening", map[string]any{"address": a.metricsLn.Addr().String()})
		g.Go(func() error {
			if err := a.metricsSrv.Serve(a.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	a.controller.WatchSignals(runCtx)
	if a.stdin != nil {
		a.controller.WatchStdin(a.stdin, a.config.Shutdown.StdinKeyword)
	}

	addrs := make([]string, 0, len(a.server.Addrs()))
	for _, addr := range a.server.Addrs() {
		addrs = append(addrs, addr.String())
	}
	a.logger.Info("server started", map[string]any{
		"addresses":       addrs,
		"renderer":        a.invoker.Renderer().Name(),
		"storage_backend": a.config.Storage.Backend,
		"control_socket":  a.control.Path(),
	})

	shutdownErr := a.controller.Wait(ctx)
	cancel()
	serveErr := g.Wait()
	_ = a.logger.Sync()
	return errors.Join(shutdownErr, serveErr)
}

// Addrs returns the bound conversion addresses.
func (a *App) Addrs() []net.Addr {
	return a.server.Addrs()
}

// ControlSocket returns the control socket path.
func (a *App) ControlSocket() string {
	return a.control.Path()
}

// Stats implements ipc.Handler.
func (a *App) Stats() *ipc.Stats {
	snap := a.collector.Snapshot()
	ws := a.worker.Stats()

	shuttingDown := false
	select {
	case <-a.controller.Triggered():
		shuttingDown = true
	default:
	}

	return &ipc.Stats{
		InstanceID:          a.meta.InstanceID,
		Version:             a.meta.Version,
		StartedAt:           a.startedAt.Format(time.RFC3339Nano),
		Renderer:            snap.Renderer,
		StorageBackend:      snap.StorageBackend,
		ShuttingDown:        shuttingDown,
		ConnectionsActive:   snap.ConnectionsActive,
		ConnectionsAccepted: snap.ConnectionsAccepted,
		ConnectionsForced:   snap.ConnectionsForced,
		AcceptErrors:        snap.AcceptErrors,
		JobsSucceeded:       snap.JobsSucceeded,
		JobsFailed:          snap.JobsFailed,
		FailedByKind:        snap.FailedByKind,
		BytesReceived:       snap.BytesReceived,
		BytesSent:           snap.BytesSent,
		RecordsEnqueued:     ws.Enqueued,
		RecordsPersisted:    ws.Persisted,
		RecordsFailed:       ws.Failed,
		RecordsDropped:      ws.Dropped,
		QueueDepth:          int64(ws.QueueDepth),
		NotifyFailures:      ws.NotifyFailures,
	}
}

// Shutdown implements ipc.Handler.
func (a *App) Shutdown(reason string) {
	a.controller.Trigger(reason)
}

// openSink opens the configured record store for writing.
func openSink(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (persist.Sink, error) {
	lodeCfg := lode.Config{Dataset: cfg.Dataset}
	switch cfg.Backend {
	case "", "sqlite":
		return sqlite.NewSink(sqlite.PoolConfig{Path: cfg.ResolvedPath(), Logger: logger})
	case "fs":
		return lode.NewSink(lodeCfg, cfg.ResolvedPath())
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Path)
		return lode.NewS3Sink(ctx, lodeCfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	case "memory":
		store := lodelibrary.NewMemory()
		return lode.NewSinkWithFactory(lodeCfg, func() (lodelibrary.Store, error) { return store, nil })
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// openNotifier builds the completion notifier, or nil when none is set.
func openNotifier(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := defaultAdapterRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "redis":
		return redisadapter.New(redisadapter.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

var _ ipc.Handler = (*App)(nil)
