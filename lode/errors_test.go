package lode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"
)

func TestClassifyError_Messages(t *testing.T) {
	tests := []struct {
		errMsg   string
		wantKind error
	}{
		{"operation timed out", ErrTimeout},
		{"AccessDenied: you do not have access", ErrAccessDenied},
		{"received status 403", ErrAccessDenied},
		{"permission denied for /data/pressroom", ErrPermissionDenied},
		{"write /data: no space left on device", ErrDiskFull},
		{"quota exceeded for user", ErrDiskFull},
		{"NoSuchKey: The specified key does not exist", ErrNotFound},
		{"NoSuchBucket: bucket gone", ErrNotFound},
		{"SlowDown: please reduce request rate", ErrThrottled},
		{"received status 429", ErrThrottled},
		{"ExpiredToken: the security token has expired", ErrAuth},
		{"dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"something completely unexpected happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if !errors.Is(got, tt.wantKind) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestClassifyError_Typed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind error
	}{
		{"deadline", fmt.Errorf("append: %w", context.DeadlineExceeded), ErrTimeout},
		{"ENOSPC", &os.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC}, ErrDiskFull},
		{"fs permission", &os.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, ErrPermissionDenied},
		{"fs not exist", &os.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); !errors.Is(got, tt.wantKind) {
				t.Errorf("classifyError(%v) = %v, want %v", tt.err, got, tt.wantKind)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

func TestStorageError_Chain(t *testing.T) {
	cause := errors.New("no space left on device")
	err := WrapWriteError(cause, "pressroom/day=2026-02-07")

	if !errors.Is(err, ErrDiskFull) {
		t.Error("expected errors.Is(err, ErrDiskFull)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected original cause in chain")
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatal("expected *StorageError")
	}
	if storageErr.Op != "write" || storageErr.Path != "pressroom/day=2026-02-07" {
		t.Errorf("Op=%q Path=%q", storageErr.Op, storageErr.Path)
	}
}

func TestWrapErrors_Nil(t *testing.T) {
	if WrapWriteError(nil, "p") != nil || WrapReadError(nil, "p") != nil || WrapInitError(nil, "d") != nil {
		t.Error("wrapping nil must return nil")
	}
}
