package protocol

import (
	"errors"
	"fmt"
	"io"
)

// TransferDirection identifies which side of a body transfer failed.
type TransferDirection string

const (
	// DirectionReceive is a body read from the peer.
	DirectionReceive TransferDirection = "receive"
	// DirectionSend is a body write to the peer.
	DirectionSend TransferDirection = "send"
)

// TransferError reports a body transfer that ended before the declared size.
type TransferError struct {
	Direction TransferDirection
	Want      int64
	Got       int64
	Err       error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("%s stopped after %d of %d bytes", e.Direction, e.Got, e.Want)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ErrZeroWrite is reported when the peer accepts zero bytes before completion.
var ErrZeroWrite = errors.New("peer accepted zero bytes")

// ReceiveBody copies exactly size bytes from r to w in chunks of at most
// ChunkSize bytes. Partial reads are accepted; a read that returns no data
// before the body is complete means the peer disconnected.
//
// Returns the number of bytes written to w. On a short body the error is a
// *TransferError with Direction=DirectionReceive.
func ReceiveBody(r io.Reader, w io.Writer, size int64) (int64, error) {
	if size < 0 {
		return 0, fmt.Errorf("negative body size %d", size)
	}

	buf := make([]byte, ChunkSize)
	var total int64
	for total < size {
		want := min(int64(len(buf)), size-total)
		n, err := r.Read(buf[:want])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("write body: %w", werr)
			}
			total += int64(n)
		}
		if total == size {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return total, &TransferError{Direction: DirectionReceive, Want: size, Got: total, Err: err}
		}
		if n == 0 {
			return total, &TransferError{Direction: DirectionReceive, Want: size, Got: total, Err: io.ErrNoProgress}
		}
	}
	return total, nil
}

// SendBody streams exactly size bytes from r to w in chunks of at most
// ChunkSize bytes and verifies that w accepted every byte.
//
// A source shorter than size is a local error; a write failure or a write
// that accepts zero bytes is a *TransferError with Direction=DirectionSend.
func SendBody(w io.Writer, r io.Reader, size int64) (int64, error) {
	if size < 0 {
		return 0, fmt.Errorf("negative body size %d", size)
	}

	buf := make([]byte, ChunkSize)
	var total int64
	for total < size {
		want := min(int64(len(buf)), size-total)
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return total, fmt.Errorf("read artifact at offset %d: %w", total, err)
		}

		chunk := buf[:n]
		for len(chunk) > 0 {
			written, werr := w.Write(chunk)
			total += int64(written)
			if werr != nil {
				return total, &TransferError{Direction: DirectionSend, Want: size, Got: total, Err: werr}
			}
			if written == 0 {
				return total, &TransferError{Direction: DirectionSend, Want: size, Got: total, Err: ErrZeroWrite}
			}
			chunk = chunk[written:]
		}
	}
	return total, nil
}
