package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies job failures.
type ErrorKind string

const (
	// ErrorValidationFailed covers bad job kind, bad extension and malformed headers.
	// Reported to the client as an error header; never retried.
	ErrorValidationFailed ErrorKind = "validation_failed"
	// ErrorConnectionLost means the peer went away mid-transfer.
	// The error header is still attempted in case only one direction closed.
	ErrorConnectionLost ErrorKind = "connection_lost"
	// ErrorConversionFailed wraps a renderer failure.
	// Reported to the client as an error header.
	ErrorConversionFailed ErrorKind = "conversion_failed"
	// ErrorPersistenceFailed means a record could not be written to the store.
	// Logged by the worker, never reported to the client.
	ErrorPersistenceFailed ErrorKind = "persistence_failed"
)

// JobError is a classified job failure.
type JobError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// ClientMessage is the text placed in the error header sent to the client.
// Underlying causes are included only for conversion failures.
func (e *JobError) ClientMessage() string {
	switch {
	case e.Kind == ErrorConnectionLost:
		return "connection lost: " + e.Msg
	case e.Kind == ErrorConversionFailed && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	default:
		return e.Msg
	}
}

// Detail is the message with its cause and without the kind prefix.
func (e *JobError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// NewJobError creates a classified job error.
func NewJobError(kind ErrorKind, msg string, err error) *JobError {
	return &JobError{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first JobError in err's chain.
// The second return value is false if there is none.
func KindOf(err error) (ErrorKind, bool) {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a JobError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
