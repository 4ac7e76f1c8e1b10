// Package client implements the pressroom conversion client.
//
// A client sends one source file per connection and writes the returned
// artifact next to the configured output directory. The artifact is
// received into a temporary file and renamed into place only once it is
// complete, so a failed transfer never leaves a truncated output behind.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pithecene-io/pressroom/iox"
	"github.com/pithecene-io/pressroom/protocol"
	"github.com/pithecene-io/pressroom/types"
)

// DefaultTimeout bounds a whole job when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// ValidationError is a local check that failed before connecting.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NetworkError means the server could not be reached or the exchange
// ended before a response header arrived (or mid-artifact).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a failure reported by the server in an error header.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// Config holds client connection settings.
type Config struct {
	Host string
	Port int
	// Timeout bounds the whole job. Zero means DefaultTimeout.
	Timeout time.Duration
	// OutputDir receives the artifact. Empty means the working directory.
	OutputDir string
}

// Request describes one conversion.
type Request struct {
	// Path is the local source file.
	Path string
	// ConversionType defaults to txt2pdf.
	ConversionType types.ConversionType
}

// Result describes a delivered artifact.
type Result struct {
	// OutputPath is where the artifact was written.
	OutputPath string
	// Size is the artifact size in bytes.
	Size int64
	// InputSize is the number of source bytes sent.
	InputSize int64
}

// Validate runs the local checks: supported type, source extension, and
// an existing regular file. Returns the file size.
func (r *Request) Validate() (int64, error) {
	if r.ConversionType == "" {
		r.ConversionType = types.ConversionTxt2PDF
	}
	if !r.ConversionType.IsSupported() {
		return 0, &ValidationError{Msg: fmt.Sprintf("unsupported conversion type %q", r.ConversionType)}
	}
	named := types.ConversionRequest{FileName: filepath.Base(r.Path)}
	if !named.HasSourceExtension() {
		return 0, &ValidationError{Msg: fmt.Sprintf("%s: file must have a %s extension", r.Path, types.SourceExtension)}
	}
	info, err := os.Stat(r.Path)
	if err != nil {
		return 0, &ValidationError{Msg: fmt.Sprintf("%s: %v", r.Path, err)}
	}
	if !info.Mode().IsRegular() {
		return 0, &ValidationError{Msg: fmt.Sprintf("%s: not a regular file", r.Path)}
	}
	return info.Size(), nil
}

// Convert runs one job.
//
// Errors:
//   - *ValidationError: local checks failed, nothing was sent
//   - *NetworkError: no complete response
//   - *ServerError: the server reported a failure
func Convert(ctx context.Context, cfg Config, req Request) (*Result, error) {
	size, err := req.Validate()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	src, err := os.Open(req.Path)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("%s: %v", req.Path, err)}
	}
	defer iox.DiscardClose(src)

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &NetworkError{Op: "connect " + address, Err: err}
	}
	defer iox.DiscardClose(conn)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	header := types.ConversionRequest{
		ConversionType: req.ConversionType,
		FileName:       filepath.Base(req.Path),
		FileSize:       size,
	}
	if err := protocol.WriteHeader(conn, header); err != nil {
		if protocol.IsHeaderError(err, protocol.HeaderErrorTooLarge) {
			return nil, &ValidationError{Msg: "file name too long for header"}
		}
		return nil, &NetworkError{Op: "send header", Err: err}
	}

	// A rejected request is answered before the body is read; a failed
	// body send may still have a response waiting.
	_, sendErr := protocol.SendBody(conn, src, size)

	resp, err := readResponse(conn)
	if err != nil {
		if sendErr != nil {
			return nil, &NetworkError{Op: "send body", Err: sendErr}
		}
		return nil, &NetworkError{Op: "read response", Err: err}
	}
	if resp.IsError() {
		return nil, &ServerError{Message: resp.Error}
	}
	if sendErr != nil {
		return nil, &NetworkError{Op: "send body", Err: sendErr}
	}

	outPath, err := receiveArtifact(conn, cfg.OutputDir, resp)
	if err != nil {
		return nil, err
	}
	return &Result{OutputPath: outPath, Size: resp.FileSize, InputSize: size}, nil
}

func readResponse(conn net.Conn) (*types.ConversionResponse, error) {
	block, err := protocol.ReadHeader(conn)
	if err != nil {
		return nil, err
	}
	var resp types.ConversionResponse
	if err := protocol.DecodeHeader(block, &resp); err != nil {
		return nil, err
	}
	if resp.FileSize < 0 {
		return nil, fmt.Errorf("negative artifact size %d", resp.FileSize)
	}
	return &resp, nil
}

// receiveArtifact streams the artifact into a temp file in dir and
// renames it to the announced name once complete.
func receiveArtifact(conn net.Conn, dir string, resp *types.ConversionResponse) (string, error) {
	if dir == "" {
		dir = "."
	}
	name := filepath.Base(resp.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", &NetworkError{Op: "read response", Err: fmt.Errorf("invalid artifact name %q", resp.FileName)}
	}
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	tmpPath := tmp.Name()

	_, recvErr := protocol.ReceiveBody(conn, tmp, resp.FileSize)
	closeErr := tmp.Close()
	if recvErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if recvErr != nil {
			var transferErr *protocol.TransferError
			if errors.As(recvErr, &transferErr) {
				return "", &NetworkError{Op: "receive artifact", Err: recvErr}
			}
			return "", fmt.Errorf("write output: %w", recvErr)
		}
		return "", fmt.Errorf("write output: %w", closeErr)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename output: %w", err)
	}
	return finalPath, nil
}
