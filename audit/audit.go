// Package audit appends one human-readable line per finished job to a
// shared log file.
//
// Line format:
//
//	[2006-01-02 15:04:05] session <id> - <message>
//
// Appends from concurrent handlers are serialized by a mutex held for the
// duration of a single line, so lines never interleave.
package audit

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/pressroom/types"
)

// DefaultPath is the audit log file used when none is configured.
const DefaultPath = "log_send.txt"

// timeLayout is the timestamp format inside the brackets.
const timeLayout = "2006-01-02 15:04:05"

// Log is an append-only audit log. Safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
}

// Open opens (or creates) the audit file at path in append mode.
// Empty path means DefaultPath.
func Open(path string) (*Log, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &Log{w: f, closer: f, now: time.Now}, nil
}

// New returns a log writing to w. Close does not close w.
func New(w io.Writer) *Log {
	return &Log{w: w, now: time.Now}
}

// Success records a delivered artifact.
func (l *Log) Success(sessionID, outputName string) error {
	return l.write(sessionID, fmt.Sprintf("file %s sent successfully", outputName))
}

// Failure records a failed job. The kind prefixes the message.
func (l *Log) Failure(sessionID string, kind types.ErrorKind, msg string) error {
	return l.write(sessionID, fmt.Sprintf("%s: %s", kind, msg))
}

func (l *Log) write(sessionID, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("[%s] session %s - %s\n", l.now().Format(timeLayout), sessionID, msg)
	if _, err := io.WriteString(l.w, line); err != nil {
		return fmt.Errorf("append audit line: %w", err)
	}
	return nil
}

// Close closes the underlying file if Open created it.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
