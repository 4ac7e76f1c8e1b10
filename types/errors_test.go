package types //nolint:revive // types is a valid package name

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestJobError_Unwrap(t *testing.T) {
	err := NewJobError(ErrorConnectionLost, "peer closed", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected errors.Is to find the wrapped cause")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	kind, ok := KindOf(wrapped)
	if !ok || kind != ErrorConnectionLost {
		t.Errorf("KindOf = (%q, %v), want (%q, true)", kind, ok, ErrorConnectionLost)
	}
	if !IsKind(wrapped, ErrorConnectionLost) {
		t.Error("IsKind should match through wrapping")
	}
	if IsKind(errors.New("plain"), ErrorConnectionLost) {
		t.Error("IsKind should not match a plain error")
	}
}

func TestJobError_ClientMessage(t *testing.T) {
	validation := NewJobError(ErrorValidationFailed, "file must be .txt", nil)
	if got := validation.ClientMessage(); got != "file must be .txt" {
		t.Errorf("ClientMessage() = %q", got)
	}

	conversion := NewJobError(ErrorConversionFailed, "render failed", errors.New("bad font"))
	if got := conversion.ClientMessage(); got != "render failed: bad font" {
		t.Errorf("ClientMessage() = %q", got)
	}
}

func TestJobError_ClientMessageConnectionLost(t *testing.T) {
	lost := NewJobError(ErrorConnectionLost, "upload interrupted", errors.New("unexpected EOF"))
	if got := lost.ClientMessage(); got != "connection lost: upload interrupted" {
		t.Errorf("ClientMessage() = %q, want cause withheld", got)
	}
}

func TestJobError_Detail(t *testing.T) {
	withCause := NewJobError(ErrorConnectionLost, "upload interrupted", errors.New("unexpected EOF"))
	if got := withCause.Detail(); got != "upload interrupted: unexpected EOF" {
		t.Errorf("Detail() = %q", got)
	}
	bare := NewJobError(ErrorValidationFailed, "bad name", nil)
	if got := bare.Detail(); got != "bad name" {
		t.Errorf("Detail() = %q", got)
	}
}
