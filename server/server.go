// Package server implements the pressroom TCP conversion server.
//
// One job per connection:
//
//	client                          server
//	  header (1024 B)        ->
//	  body (file_size B)     ->
//	                         <-     header (1024 B)
//	                         <-     artifact (file_size B, omitted on error)
//
// Listening sockets feed a single dispatch channel; every accepted
// connection is handled on its own goroutine. Shared collaborators are
// injected through Deps and never held in package state.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/pressroom/convert"
	"github.com/pithecene-io/pressroom/log"
	"github.com/pithecene-io/pressroom/metrics"
	"github.com/pithecene-io/pressroom/types"
)

// Accept backoff bounds for transient accept errors.
const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

// errorHeaderTimeout bounds the best-effort error header write.
const errorHeaderTimeout = 2 * time.Second

// Config holds server settings.
type Config struct {
	// Host to bind. Empty binds the IPv4 and IPv6 wildcards.
	Host string
	// Port to bind. Zero picks a free port shared by all sockets.
	Port int
	// TempDir holds per-session input and output files. Created if missing.
	TempDir string
	// MaxConnections caps concurrent handlers. Zero means unbounded.
	MaxConnections int
	// IOTimeout is the idle deadline for each socket read or write.
	// Zero disables deadlines.
	IOTimeout time.Duration
	// MaxFileSize rejects larger uploads. Zero means unbounded.
	MaxFileSize int64
}

// Converter produces an artifact from a received source file.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (*convert.Artifact, error)
}

// Recorder accepts completed-job records for asynchronous persistence.
type Recorder interface {
	Enqueue(ctx context.Context, rec *types.ConversionRecord) error
}

// Auditor appends one line per finished job.
type Auditor interface {
	Success(sessionID, outputName string) error
	Failure(sessionID string, kind types.ErrorKind, msg string) error
}

// Deps are the shared collaborators handed to every connection handler.
type Deps struct {
	Converter Converter
	Recorder  Recorder
	Auditor   Auditor
	// Logger is optional. If nil, nothing is logged.
	Logger *log.Logger
	// Metrics is optional. Nil-safe.
	Metrics *metrics.Collector
}

// Server accepts connections and runs one handler per connection.
//
// Lifecycle: New, Listen, Serve (blocks), then Shutdown from another
// goroutine. CloseListeners stops intake without waiting.
type Server struct {
	config Config
	deps   Deps
	logger *log.Logger

	listeners []net.Listener
	dispatch  chan net.Conn
	sem       chan struct{}

	// handlerCtx is canceled when remaining handlers are force-closed.
	handlerCtx    context.Context
	cancelHandler context.CancelFunc

	mu      sync.Mutex
	active  map[net.Conn]struct{}
	closing bool
	// stopped is set by Shutdown. Serve registers its accept loops only
	// while it is unset.
	stopped bool

	accepts   sync.WaitGroup
	handlers  sync.WaitGroup
	closeOnce sync.Once
}

// New validates deps and creates a server. Call Listen before Serve.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Converter == nil {
		return nil, errors.New("server: converter is required")
	}
	if deps.Recorder == nil {
		return nil, errors.New("server: recorder is required")
	}
	if deps.Auditor == nil {
		return nil, errors.New("server: auditor is required")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("server: invalid port %d", cfg.Port)
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:        cfg,
		deps:          deps,
		logger:        logger,
		dispatch:      make(chan net.Conn),
		sem:           sem,
		handlerCtx:    ctx,
		cancelHandler: cancel,
		active:        make(map[net.Conn]struct{}),
	}, nil
}

// Listen creates the temp dir and binds the listening sockets.
func (s *Server) Listen(ctx context.Context) error {
	if err := os.MkdirAll(s.config.TempDir, 0o700); err != nil {
		return fmt.Errorf("server: create temp dir: %w", err)
	}
	listeners, err := listenAll(ctx, s.config.Host, s.config.Port, s.logger)
	if err != nil {
		return err
	}
	s.listeners = listeners
	return nil
}

// Addrs returns the bound addresses.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// Serve runs one accept loop per listener and the dispatcher. It blocks
// until every listener is closed (by CloseListeners, Shutdown, or ctx).
// It returns nil at once if Shutdown already ran.
// Handlers still running when Serve returns are waited for by Shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if len(s.listeners) == 0 {
		return ErrNoListeners
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.accepts.Add(len(s.listeners))
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	for _, ln := range s.listeners {
		g.Go(func() error {
			defer s.accepts.Done()
			return s.acceptLoop(ln)
		})
	}

	g.Go(func() error {
		s.accepts.Wait()
		close(s.dispatch)
		return nil
	})

	g.Go(func() error {
		s.dispatchLoop()
		return nil
	})

	stop := context.AfterFunc(gctx, func() { _ = s.CloseListeners() })
	defer stop()

	return g.Wait()
}

// acceptLoop accepts until the listener is closed. Transient errors back
// off exponentially and never end the loop.
func (s *Server) acceptLoop(ln net.Listener) error {
	backoff := time.Duration(0)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = acceptBackoffMin
			} else {
				backoff = min(backoff*2, acceptBackoffMax)
			}
			s.deps.Metrics.IncAcceptErrors()
			s.logger.Warn("accept failed, backing off", map[string]any{
				"address": ln.Addr().String(),
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.deps.Metrics.ConnectionOpened()
		s.dispatch <- conn
	}
}

// dispatchLoop starts a handler per connection, waiting for a free slot
// when admission is bounded.
func (s *Server) dispatchLoop() {
	for conn := range s.dispatch {
		if s.sem != nil {
			s.sem <- struct{}{}
		}
		go func() {
			defer s.handlers.Done()
			if s.sem != nil {
				defer func() { <-s.sem }()
			}
			s.handle(conn)
		}()
	}
}

// track registers an accepted connection. It fails once force-close has
// started.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.active[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
	s.deps.Metrics.ConnectionClosed()
}

// ActiveConnections returns the number of connections being handled.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CloseListeners stops accepting. Safe to call more than once.
func (s *Server) CloseListeners() error {
	var errs []error
	s.closeOnce.Do(func() {
		for _, ln := range s.listeners {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Shutdown closes the listeners and waits for in-flight handlers until ctx
// ends. Connections still open at that point are force-closed and their
// handlers are waited for.
//
// Returns the number of force-closed connections.
func (s *Server) Shutdown(ctx context.Context) (int, error) {
	err := s.CloseListeners()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	// No handler is registered once every accept loop has returned.
	done := make(chan struct{})
	go func() {
		s.accepts.Wait()
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return 0, err
	case <-ctx.Done():
	}

	forced := s.forceClose()
	<-done
	return forced, err
}

// forceClose cancels running conversions and closes every tracked socket.
func (s *Server) forceClose() int {
	s.mu.Lock()
	s.closing = true
	conns := make([]net.Conn, 0, len(s.active))
	for conn := range s.active {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.cancelHandler()
	for _, conn := range conns {
		_ = conn.Close()
		s.deps.Metrics.IncConnectionsForced()
	}
	if len(conns) > 0 {
		s.logger.Warn("force-closed connections at handler deadline", map[string]any{
			"count": len(conns),
		})
	}
	return len(conns)
}
