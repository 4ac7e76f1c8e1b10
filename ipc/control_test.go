package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type stubHandler struct {
	mu      sync.Mutex
	reasons []string
}

func (h *stubHandler) Stats() *Stats {
	return &Stats{
		InstanceID:    "inst-1",
		JobsSucceeded: 7,
		FailedByKind:  map[string]int64{"validation_failed": 2},
	}
}

func (h *stubHandler) Shutdown(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
}

func (h *stubHandler) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reasons...)
}

// socketPath keeps the path short enough for sun_path limits.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "prs")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func startControl(t *testing.T, handler Handler) *ControlServer {
	t.Helper()
	srv, err := Listen(socketPath(t), handler, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("control server did not stop")
		}
	})
	return srv
}

func TestControl_StatsPingShutdown(t *testing.T) {
	handler := &stubHandler{}
	srv := startControl(t, handler)

	c, err := Dial(t.Context(), srv.Path())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Ping(t.Context()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	stats, err := c.Stats(t.Context())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.InstanceID != "inst-1" || stats.JobsSucceeded != 7 || stats.FailedByKind["validation_failed"] != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if err := c.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := handler.calls(); len(got) != 1 || got[0] != "control" {
		t.Errorf("shutdown reasons = %v, want [control]", got)
	}
}

func TestControl_UnknownCommand(t *testing.T) {
	srv := startControl(t, &stubHandler{})

	c, err := Dial(t.Context(), srv.Path())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	resp, err := c.Do(t.Context(), "reboot")
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if resp == nil || resp.OK || resp.Error == "" {
		t.Errorf("response = %+v, want OK=false with error", resp)
	}

	// The connection stays usable.
	if err := c.Ping(t.Context()); err != nil {
		t.Errorf("Ping after unknown command failed: %v", err)
	}
}

func TestControl_GarbageFrameKeepsConnection(t *testing.T) {
	srv := startControl(t, &stubHandler{})

	conn, err := net.Dial("unix", srv.Path())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(encodeFrame([]byte{0xc1})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	dec := NewFrameDecoder(conn)
	var resp Response
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("response = %+v, want decode error", resp)
	}

	if err := WriteFrame(conn, &Request{Command: CommandPing}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := dec.Decode(&resp); err != nil || !resp.OK {
		t.Errorf("ping after garbage = %+v, %v", resp, err)
	}
}

func TestControl_CloseInterruptsOpenConnections(t *testing.T) {
	srv, err := Listen(socketPath(t), &stubHandler{}, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	c, err := Dial(t.Context(), srv.Path())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Close() }()
	if err := c.Ping(t.Context()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve waited on an idle control connection")
	}

	if err := c.Ping(t.Context()); err == nil {
		t.Error("Ping succeeded on a connection closed by the server")
	}
}

func TestListen_RemovesStaleSocket(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	srv, err := Listen(path, &stubHandler{}, nil)
	if err != nil {
		t.Fatalf("Listen over stale socket failed: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket file still present after Close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestListen_RefusesLiveSocket(t *testing.T) {
	srv := startControl(t, &stubHandler{})

	if _, err := Listen(srv.Path(), &stubHandler{}, nil); err == nil {
		t.Fatal("Listen on a live socket succeeded")
	}
}

func TestDial_NotRunning(t *testing.T) {
	_, err := Dial(t.Context(), socketPath(t))
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Dial = %v, want ErrNotRunning", err)
	}
}
