package reader

import "context"

// Reader abstracts read-only data access for CLI commands.
// Implementations may talk to a live server, open a record store, or stub
// both for testing.
type Reader interface {
	// Stats returns live statistics from a running server.
	Stats(ctx context.Context) (*ServerStats, error)
	// Records lists persisted records, newest first. An empty store yields
	// an empty slice, not an error.
	Records(ctx context.Context, opts RecordsOptions) ([]RecordView, error)
}
