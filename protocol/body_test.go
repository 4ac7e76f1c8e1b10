package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReceiveBody_Exact(t *testing.T) {
	body := strings.Repeat("0123456789", 1000) // spans several chunks
	var dst bytes.Buffer

	// Trailing bytes beyond the declared size must be left unread.
	src := strings.NewReader(body + "trailing")
	n, err := ReceiveBody(src, &dst, int64(len(body)))
	if err != nil {
		t.Fatalf("ReceiveBody failed: %v", err)
	}
	if n != int64(len(body)) {
		t.Errorf("n = %d, want %d", n, len(body))
	}
	if dst.String() != body {
		t.Error("received body differs from sent body")
	}
	if src.Len() != len("trailing") {
		t.Errorf("ReceiveBody consumed %d bytes past the body", len("trailing")-src.Len())
	}
}

func TestReceiveBody_PartialReads(t *testing.T) {
	body := strings.Repeat("a", 9000)
	var dst bytes.Buffer

	n, err := ReceiveBody(iotest.OneByteReader(strings.NewReader(body)), &dst, int64(len(body)))
	if err != nil {
		t.Fatalf("ReceiveBody failed: %v", err)
	}
	if n != int64(len(body)) || dst.Len() != len(body) {
		t.Errorf("n = %d, buffered = %d, want %d", n, dst.Len(), len(body))
	}
}

func TestReceiveBody_Zero(t *testing.T) {
	var dst bytes.Buffer
	n, err := ReceiveBody(strings.NewReader(""), &dst, 0)
	if err != nil || n != 0 {
		t.Errorf("ReceiveBody(0) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestReceiveBody_Truncated(t *testing.T) {
	var dst bytes.Buffer
	n, err := ReceiveBody(strings.NewReader("short"), &dst, 100)

	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected *TransferError, got %v", err)
	}
	if transferErr.Direction != DirectionReceive {
		t.Errorf("Direction = %q, want %q", transferErr.Direction, DirectionReceive)
	}
	if transferErr.Got != 5 || transferErr.Want != 100 || n != 5 {
		t.Errorf("Got/Want/n = %d/%d/%d, want 5/100/5", transferErr.Got, transferErr.Want, n)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF in chain, got %v", err)
	}
}

func TestReceiveBody_ReadError(t *testing.T) {
	boom := errors.New("connection reset by peer")
	var dst bytes.Buffer
	_, err := ReceiveBody(iotest.ErrReader(boom), &dst, 10)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestSendBody_Exact(t *testing.T) {
	artifact := bytes.Repeat([]byte("%PDF"), 3000)
	var dst bytes.Buffer

	n, err := SendBody(&dst, bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		t.Fatalf("SendBody failed: %v", err)
	}
	if n != int64(len(artifact)) {
		t.Errorf("n = %d, want %d", n, len(artifact))
	}
	if !bytes.Equal(dst.Bytes(), artifact) {
		t.Error("sent bytes differ from artifact")
	}
}

// zeroWriter accepts nothing and reports no error.
type zeroWriter struct{}

func (zeroWriter) Write([]byte) (int, error) { return 0, nil }

// limitWriter accepts up to limit bytes then fails.
type limitWriter struct {
	limit   int
	written int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	room := w.limit - w.written
	if room <= 0 {
		return 0, errors.New("broken pipe")
	}
	if len(p) > room {
		w.written += room
		return room, errors.New("broken pipe")
	}
	w.written += len(p)
	return len(p), nil
}

func TestSendBody_ZeroWrite(t *testing.T) {
	_, err := SendBody(zeroWriter{}, strings.NewReader("data"), 4)
	if !errors.Is(err, ErrZeroWrite) {
		t.Errorf("expected ErrZeroWrite, got %v", err)
	}
	var transferErr *TransferError
	if !errors.As(err, &transferErr) || transferErr.Direction != DirectionSend {
		t.Errorf("expected send TransferError, got %v", err)
	}
}

func TestSendBody_PeerGone(t *testing.T) {
	w := &limitWriter{limit: 5000}
	n, err := SendBody(w, bytes.NewReader(make([]byte, 10000)), 10000)

	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected *TransferError, got %v", err)
	}
	if n != 5000 || transferErr.Got != 5000 {
		t.Errorf("n = %d, Got = %d, want 5000", n, transferErr.Got)
	}
}

func TestSendBody_ShortSource(t *testing.T) {
	var dst bytes.Buffer
	_, err := SendBody(&dst, strings.NewReader("abc"), 10)
	if err == nil {
		t.Fatal("expected error for a source shorter than the declared size")
	}
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		t.Errorf("short source must be a local error, got %v", err)
	}
}
