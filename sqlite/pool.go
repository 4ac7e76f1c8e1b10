// Package sqlite persists conversion records to a local SQLite database.
//
// The schema keeps the column names of the historical conversiones table
// (ip, nombre_archivo, tamano_txt, tamano_pdf, fecha) so existing reports
// keep working, and adds job_id and input_digest. job_id is unique, so a
// record written twice is stored once.
//
// Connections come from a fixed-size zombiezen pool with WAL pragmas.
// Callers Take a connection, do their work, and Put it back; connections
// are not safe for concurrent use.
package sqlite

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pithecene-io/pressroom/log"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "conversiones.db"

// DefaultPoolSize is the number of pooled connections. Writes are
// serialized by SQLite regardless, and only the worker and the records
// command touch the database.
const DefaultPoolSize = 4

// PoolConfig holds the parameters for opening a Pool.
type PoolConfig struct {
	// Path is the database file. Created if missing. Empty means DefaultPath.
	Path string
	// PoolSize is the number of connections. Zero means DefaultPoolSize.
	PoolSize int
	// Logger is an optional logger. If nil, nothing is logged.
	Logger *log.Logger
}

// Pool is a fixed-size pool of SQLite connections with the schema applied.
type Pool struct {
	inner *sqlitex.Pool
	path  string
}

// pragmas applied to every connection.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

const schema = `
CREATE TABLE IF NOT EXISTS conversiones (
	id             INTEGER PRIMARY KEY,
	ip             TEXT NOT NULL,
	nombre_archivo TEXT NOT NULL,
	tamano_txt     INTEGER NOT NULL,
	tamano_pdf     INTEGER NOT NULL,
	fecha          TEXT NOT NULL,
	job_id         TEXT NOT NULL UNIQUE,
	input_digest   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS conversiones_fecha ON conversiones (fecha);
`

// OpenPool opens the database and prepares every connection with the
// standard pragmas and the schema.
func OpenPool(cfg PoolConfig) (*Pool, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}

	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("sqlite pool opened", map[string]any{
			"path":      path,
			"pool_size": size,
		})
	}
	return &Pool{inner: inner, path: path}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// Take borrows a connection. Blocks until one is free or ctx ends.
// The caller must Put it back.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Path returns the database file path.
func (p *Pool) Path() string {
	return p.path
}

// Close closes all connections. Blocks until borrowed connections are returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	return nil
}
