package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/pressroom/log"
)

// connIdleTimeout closes control connections that stay silent.
const connIdleTimeout = 30 * time.Second

// Handler answers control commands.
type Handler interface {
	// Stats returns the current server view.
	Stats() *Stats
	// Shutdown requests a graceful shutdown. It must not block.
	Shutdown(reason string)
}

// ControlServer serves the control socket.
type ControlServer struct {
	path     string
	handler  Handler
	logger   *log.Logger
	listener net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Listen binds a unix socket at path. A stale socket file left by a
// previous process is removed first; a live one is an error.
func Listen(path string, handler Handler, logger *log.Logger) (*ControlServer, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on control socket %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod control socket: %w", err)
	}

	logger.Info("control socket listening", map[string]any{"path": path})
	return &ControlServer{
		path:     path,
		handler:  handler,
		logger:   logger,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("control socket %s is in use by a running server", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale control socket: %w", err)
	}
	return nil
}

// Path returns the socket path.
func (s *ControlServer) Path() string {
	return s.path
}

// Serve accepts control connections until Close or ctx ends.
func (s *ControlServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// track registers conn so Close can interrupt it. It fails once Close has
// started.
func (s *ControlServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *ControlServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *ControlServer) serveConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.untrack(conn)
	}()

	dec := NewFrameDecoder(conn)
	for {
		_ = conn.SetDeadline(time.Now().Add(connIdleTimeout))

		var req Request
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return
			}
			if IsFatalFrameError(err) {
				s.logger.Debug("control connection dropped", map[string]any{"error": err.Error()})
				return
			}
			if werr := WriteFrame(conn, &Response{Error: err.Error()}); werr != nil {
				return
			}
			continue
		}

		resp := s.dispatch(req)
		if err := WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

func (s *ControlServer) dispatch(req Request) *Response {
	resp := &Response{Command: req.Command}
	switch req.Command {
	case CommandPing:
		resp.OK = true
	case CommandStats:
		resp.OK = true
		resp.Stats = s.handler.Stats()
	case CommandShutdown:
		s.logger.Info("shutdown requested over control socket", nil)
		s.handler.Shutdown("control")
		resp.OK = true
	default:
		resp.Error = fmt.Sprintf("unknown command %q", req.Command)
	}
	return resp
}

// Close stops accepting, closes open control connections and removes the
// socket file. Safe to call more than once.
func (s *ControlServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()

		err = s.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	})
	return err
}
