// Package protocol implements the pressroom wire format.
//
// Every message is a fixed-width header followed by an optional raw body:
//
//	[ 1024 bytes: UTF-8 JSON, right-padded with 0x20 ][ file_size raw bytes ]
//
// The header width, the pad byte and the trim-on-decode rule are wire
// constants shared by both ends. Changing any of them breaks compatibility
// with existing clients.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Wire constants.
const (
	// HeaderSize is the fixed width of every header block.
	HeaderSize = 1024
	// PadByte fills the header after the JSON content.
	PadByte = ' '
	// ChunkSize bounds a single body read or write.
	ChunkSize = 4096
)

// ErrPeerClosed is returned by ReadHeader when the peer closed the
// connection before sending any header byte.
var ErrPeerClosed = errors.New("peer closed before sending a header")

// HeaderErrorKind classifies header codec errors.
type HeaderErrorKind int

const (
	// HeaderErrorTooLarge indicates the JSON encoding exceeds HeaderSize.
	HeaderErrorTooLarge HeaderErrorKind = iota
	// HeaderErrorMalformed indicates empty or invalid JSON content.
	HeaderErrorMalformed
	// HeaderErrorPartial indicates the stream ended inside a header.
	HeaderErrorPartial
)

func (k HeaderErrorKind) String() string {
	switch k {
	case HeaderErrorTooLarge:
		return "encoding too large"
	case HeaderErrorMalformed:
		return "malformed header"
	case HeaderErrorPartial:
		return "partial header"
	default:
		return fmt.Sprintf("header error %d", int(k))
	}
}

// HeaderError represents a header encoding or decoding error.
type HeaderError struct {
	Kind HeaderErrorKind
	Msg  string
	Err  error
}

func (e *HeaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// IsHeaderError reports whether err is a HeaderError of the given kind.
func IsHeaderError(err error, kind HeaderErrorKind) bool {
	var headerErr *HeaderError
	if errors.As(err, &headerErr) {
		return headerErr.Kind == kind
	}
	return false
}

// EncodeHeader encodes v as JSON and pads it to exactly HeaderSize bytes.
// A JSON encoding of exactly HeaderSize bytes is valid and carries no padding.
func EncodeHeader(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, &HeaderError{
			Kind: HeaderErrorMalformed,
			Msg:  "failed to encode header",
			Err:  err,
		}
	}
	if len(payload) > HeaderSize {
		return nil, &HeaderError{
			Kind: HeaderErrorTooLarge,
			Msg:  fmt.Sprintf("header is %d bytes, maximum is %d", len(payload), HeaderSize),
		}
	}

	block := make([]byte, HeaderSize)
	n := copy(block, payload)
	for i := n; i < HeaderSize; i++ {
		block[i] = PadByte
	}
	return block, nil
}

// DecodeHeader trims surrounding whitespace from block and decodes the JSON
// content into v. Empty content is malformed: the peer sent nothing useful.
func DecodeHeader(block []byte, v any) error {
	content := bytes.TrimSpace(block)
	if len(content) == 0 {
		return &HeaderError{
			Kind: HeaderErrorMalformed,
			Msg:  "header is empty",
		}
	}
	if err := json.Unmarshal(content, v); err != nil {
		return &HeaderError{
			Kind: HeaderErrorMalformed,
			Msg:  "header is not valid JSON",
			Err:  err,
		}
	}
	return nil
}

// ReadHeader reads exactly one header block from r.
//
// Errors:
//   - ErrPeerClosed: the stream ended before the first byte
//   - *HeaderError with Kind=HeaderErrorPartial: the stream ended mid-header
//   - any other read error from r
func ReadHeader(r io.Reader) ([]byte, error) {
	block := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, block)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, ErrPeerClosed
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &HeaderError{
				Kind: HeaderErrorPartial,
				Msg:  fmt.Sprintf("received %d of %d header bytes", n, HeaderSize),
				Err:  err,
			}
		}
		return nil, err
	}
	return block, nil
}

// WriteHeader encodes v and writes the whole block to w.
func WriteHeader(w io.Writer, v any) error {
	block, err := EncodeHeader(v)
	if err != nil {
		return err
	}
	n, err := w.Write(block)
	if err != nil {
		return err
	}
	if n != len(block) {
		return io.ErrShortWrite
	}
	return nil
}
