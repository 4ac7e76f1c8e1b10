package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/pithecene-io/pressroom/convert"
	"github.com/pithecene-io/pressroom/iox"
	"github.com/pithecene-io/pressroom/log"
	"github.com/pithecene-io/pressroom/protocol"
	"github.com/pithecene-io/pressroom/types"
)

// State is a connection handler state.
type State int

const (
	StateAwaitHeader State = iota
	StateReceivingBody
	StateConverting
	StateSendingResponse
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateAwaitHeader:
		return "await_header"
	case StateReceivingBody:
		return "receiving_body"
	case StateConverting:
		return "converting"
	case StateSendingResponse:
		return "sending_response"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session is the state owned by one connection handler.
type session struct {
	id     string
	remote string
	conn   net.Conn
	rw     io.ReadWriter
	state  State
	logger *log.Logger

	req        types.ConversionRequest
	inputPath  string
	outputPath string
	digest     string
	received   int64
	sent       int64
	// headerSent is set once any response header reached the socket.
	headerSent bool

	cleanup func() error
}

// handle runs one job on conn. Cleanup runs exactly once on every path.
func (s *Server) handle(conn net.Conn) {
	sess := &session{
		id:     uuid.NewString(),
		remote: conn.RemoteAddr().String(),
		conn:   conn,
		rw:     conn,
		state:  StateAwaitHeader,
	}
	if s.config.IOTimeout > 0 {
		sess.rw = &deadlineConn{Conn: conn, timeout: s.config.IOTimeout}
	}
	sess.logger = s.logger.With(map[string]any{
		"session_id": sess.id,
		"remote":     sess.remote,
	})
	sess.cleanup = iox.Once(func() error {
		closeErr := conn.Close()
		if errors.Is(closeErr, net.ErrClosed) {
			closeErr = nil
		}
		return errors.Join(closeErr, iox.RemoveFiles(sess.inputPath, sess.outputPath))
	})
	defer func() {
		if err := sess.cleanup(); err != nil {
			sess.logger.Warn("session cleanup failed", map[string]any{"error": err.Error()})
		}
		s.untrack(conn)
	}()

	sess.logger.Debug("connection accepted", nil)

	err := s.run(sess)
	switch {
	case err == nil:
		return
	case errors.Is(err, protocol.ErrPeerClosed):
		sess.logger.Debug("peer closed before sending a header", nil)
		return
	}
	s.fail(sess, err)
}

// run drives the state machine up to Done. Any returned error moves the
// session to Error.
func (s *Server) run(sess *session) error {
	if err := s.awaitHeader(sess); err != nil {
		return err
	}
	sess.state = StateReceivingBody
	if err := s.receiveBody(sess); err != nil {
		return err
	}

	sess.state = StateConverting
	// Registered before rendering so a partial artifact is removed too.
	sess.outputPath = convert.OutputPath(sess.inputPath)
	artifact, err := s.deps.Converter.Convert(s.handlerCtx, sess.inputPath)
	if err != nil {
		if _, ok := types.KindOf(err); !ok {
			err = types.NewJobError(types.ErrorConversionFailed, "conversion failed", err)
		}
		return err
	}
	sess.outputPath = artifact.Path

	sess.state = StateSendingResponse
	if err := s.sendResponse(sess, artifact); err != nil {
		return err
	}

	sess.state = StateDone
	s.complete(sess, artifact)
	return nil
}

func (s *Server) awaitHeader(sess *session) error {
	block, err := protocol.ReadHeader(sess.rw)
	if err != nil {
		if errors.Is(err, protocol.ErrPeerClosed) {
			return err
		}
		return types.NewJobError(types.ErrorConnectionLost, "header not received", err)
	}
	if err := protocol.DecodeHeader(block, &sess.req); err != nil {
		return types.NewJobError(types.ErrorValidationFailed, "malformed header", err)
	}
	if err := s.validate(&sess.req); err != nil {
		return err
	}
	sess.logger.Debug("header accepted", map[string]any{
		"file_name": sess.req.FileName,
		"file_size": sess.req.FileSize,
	})
	return nil
}

// maxBaseNameBytes bounds the base name so the session file name stays
// under common file system limits.
const maxBaseNameBytes = 200

// validate rejects a request before any body byte is read.
func (s *Server) validate(req *types.ConversionRequest) error {
	invalid := func(msg string) error {
		return types.NewJobError(types.ErrorValidationFailed, msg, nil)
	}

	if !req.ConversionType.IsSupported() {
		return invalid(fmt.Sprintf("unsupported conversion type %q", req.ConversionType))
	}
	if !req.HasSourceExtension() {
		return invalid(fmt.Sprintf("file must have a %s extension", types.SourceExtension))
	}
	if !isBareName(req.FileName) || req.BaseName() == "" {
		return invalid(fmt.Sprintf("invalid file name %q", req.FileName))
	}
	if len(req.BaseName()) > maxBaseNameBytes {
		return invalid(fmt.Sprintf("file name too long (%d bytes, limit %d)", len(req.BaseName()), maxBaseNameBytes))
	}
	if req.FileSize < 0 {
		return invalid(fmt.Sprintf("negative file size %d", req.FileSize))
	}
	if s.config.MaxFileSize > 0 && req.FileSize > s.config.MaxFileSize {
		return invalid(fmt.Sprintf("file size %d exceeds limit %d", req.FileSize, s.config.MaxFileSize))
	}
	return nil
}

// isBareName reports whether name is a single path element.
func isBareName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}

func (s *Server) receiveBody(sess *session) error {
	path := filepath.Join(s.config.TempDir, sess.id+"_"+sess.req.BaseName()+types.SourceExtension)
	f, err := iox.CreateExclusive(path)
	if err != nil {
		return types.NewJobError(types.ErrorConversionFailed, "cannot create upload file", err)
	}
	sess.inputPath = path

	hasher := blake3.New()
	n, err := protocol.ReceiveBody(sess.rw, io.MultiWriter(f, hasher), sess.req.FileSize)
	sess.received = n
	s.deps.Metrics.AddBytesReceived(n)
	closeErr := f.Close()

	if err != nil {
		var transferErr *protocol.TransferError
		if errors.As(err, &transferErr) {
			return types.NewJobError(types.ErrorConnectionLost, "upload interrupted", err)
		}
		return types.NewJobError(types.ErrorConversionFailed, "cannot store upload", err)
	}
	if closeErr != nil {
		return types.NewJobError(types.ErrorConversionFailed, "cannot store upload", closeErr)
	}

	sess.digest = hex.EncodeToString(hasher.Sum(nil))
	return nil
}

func (s *Server) sendResponse(sess *session, artifact *convert.Artifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return types.NewJobError(types.ErrorConversionFailed, "cannot open artifact", err)
	}
	defer iox.DiscardClose(f)

	resp := types.NewSuccessResponse(sess.req.OutputName(), artifact.Size)
	if err := protocol.WriteHeader(sess.rw, resp); err != nil {
		sess.headerSent = true
		return types.NewJobError(types.ErrorConnectionLost, "response header not delivered", err)
	}
	sess.headerSent = true

	n, err := protocol.SendBody(sess.rw, f, artifact.Size)
	sess.sent = n
	s.deps.Metrics.AddBytesSent(n)
	if err != nil {
		var transferErr *protocol.TransferError
		if errors.As(err, &transferErr) {
			return types.NewJobError(types.ErrorConnectionLost, "artifact not delivered", err)
		}
		return types.NewJobError(types.ErrorConversionFailed, "cannot read artifact", err)
	}
	return nil
}

// complete records a delivered job: one record, one audit line.
func (s *Server) complete(sess *session, artifact *convert.Artifact) {
	rec := &types.ConversionRecord{
		JobID:           sess.id,
		SourceAddress:   sess.remote,
		BaseFileName:    sess.req.BaseName(),
		InputSizeBytes:  sess.received,
		OutputSizeBytes: artifact.Size,
		InputDigest:     sess.digest,
		Timestamp:       time.Now(),
	}
	if err := s.deps.Recorder.Enqueue(s.handlerCtx, rec); err != nil {
		sess.logger.Warn("conversion record not enqueued", map[string]any{"error": err.Error()})
	}
	if err := s.deps.Auditor.Success(sess.id, sess.req.OutputName()); err != nil {
		s.deps.Metrics.IncAuditWriteFailures()
		sess.logger.Error("audit append failed", map[string]any{"error": err.Error()})
	}
	s.deps.Metrics.IncJobSucceeded()
	sess.logger.Info("conversion delivered", map[string]any{
		"file_name":   sess.req.FileName,
		"input_size":  sess.received,
		"output_size": artifact.Size,
	})
}

// fail moves the session to Error: best-effort error header, one audit
// line, one log entry.
func (s *Server) fail(sess *session, err error) {
	from := sess.state
	sess.state = StateError

	jobErr := asJobError(err)
	if !sess.headerSent {
		s.sendErrorHeader(sess, jobErr.ClientMessage())
	}

	if auditErr := s.deps.Auditor.Failure(sess.id, jobErr.Kind, jobErr.Detail()); auditErr != nil {
		s.deps.Metrics.IncAuditWriteFailures()
		sess.logger.Error("audit append failed", map[string]any{"error": auditErr.Error()})
	}
	s.deps.Metrics.IncJobFailed(string(jobErr.Kind))

	fields := map[string]any{
		"kind":     string(jobErr.Kind),
		"state":    from.String(),
		"received": sess.received,
		"error":    jobErr.Error(),
	}
	if jobErr.Kind == types.ErrorConnectionLost {
		sess.logger.Warn("connection lost", fields)
	} else {
		sess.logger.Info("job rejected", fields)
	}
}

// sendErrorHeader writes the failure shape under a short deadline.
// Failures are ignored: the peer may already be gone.
func (s *Server) sendErrorHeader(sess *session, msg string) {
	_ = sess.conn.SetWriteDeadline(time.Now().Add(errorHeaderTimeout))
	if err := protocol.WriteHeader(sess.conn, types.NewErrorResponse(msg)); err != nil {
		sess.logger.Debug("error header not delivered", map[string]any{"error": err.Error()})
		return
	}
	sess.headerSent = true
}

func asJobError(err error) *types.JobError {
	var jobErr *types.JobError
	if errors.As(err, &jobErr) {
		return jobErr
	}
	return types.NewJobError(types.ErrorConnectionLost, "unexpected failure", err)
}

// deadlineConn refreshes an idle deadline before every read and write.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
