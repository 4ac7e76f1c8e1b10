package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pithecene-io/pressroom/persist"
	"github.com/pithecene-io/pressroom/types"
)

// fechaLayout is the stored timestamp format. Fixed width, UTC, so rows
// sort lexically by time.
const fechaLayout = "2006-01-02 15:04:05.000000"

// ErrNoRecordsFound is returned when a query matches nothing.
var ErrNoRecordsFound = errors.New("no conversion records found")

// Sink writes conversion records to the conversiones table.
type Sink struct {
	pool *Pool
	// owned is true when Close must also close the pool.
	owned bool
}

// NewSink opens a pool at path and returns a sink that owns it.
func NewSink(cfg PoolConfig) (*Sink, error) {
	pool, err := OpenPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Sink{pool: pool, owned: true}, nil
}

// NewSinkWithPool returns a sink over a pool the caller keeps ownership of.
func NewSinkWithPool(pool *Pool) *Sink {
	return &Sink{pool: pool}
}

// Append inserts one record. A record whose job_id is already stored is
// ignored.
func (s *Sink) Append(ctx context.Context, rec *types.ConversionRecord) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO conversiones
			(ip, nombre_archivo, tamano_txt, tamano_pdf, fecha, job_id, input_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				hostOf(rec.SourceAddress),
				rec.BaseFileName,
				rec.InputSizeBytes,
				rec.OutputSizeBytes,
				rec.Timestamp.UTC().Format(fechaLayout),
				rec.JobID,
				rec.InputDigest,
			},
		})
	if err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", rec.JobID, err)
	}
	return nil
}

// Close closes the pool if the sink owns it.
func (s *Sink) Close() error {
	if !s.owned {
		return nil
	}
	return s.pool.Close()
}

// Query filters a record listing.
type Query struct {
	// Day restricts results to one UTC day (YYYY-MM-DD). Empty means all.
	Day string
	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// QueryRecords lists stored records, newest first.
// SourceAddress holds the peer IP only; the port is not stored.
//
// Returns ErrNoRecordsFound if nothing matches.
func QueryRecords(ctx context.Context, pool *Pool, q Query) ([]*types.ConversionRecord, error) {
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	var conditions []string
	var args []any
	if q.Day != "" {
		conditions = append(conditions, "substr(fecha, 1, 10) = ?")
		args = append(args, q.Day)
	}

	query := "SELECT ip, nombre_archivo, tamano_txt, tamano_pdf, fecha, job_id, input_digest " +
		"FROM conversiones"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY fecha DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	var out []*types.ConversionRecord
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rec, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: query conversiones: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoRecordsFound
	}
	return out, nil
}

// Count returns the number of stored records.
func Count(ctx context.Context, pool *Pool) (int64, error) {
	conn, err := pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)

	var n int64
	err = sqlitex.Execute(conn, "SELECT count(*) FROM conversiones", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: count conversiones: %w", err)
	}
	return n, nil
}

func scanRecord(stmt *sqlite.Stmt) (*types.ConversionRecord, error) {
	// Columns: ip(0), nombre_archivo(1), tamano_txt(2), tamano_pdf(3),
	// fecha(4), job_id(5), input_digest(6)
	ts, err := time.Parse(fechaLayout, stmt.ColumnText(4))
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse fecha %q: %w", stmt.ColumnText(4), err)
	}
	return &types.ConversionRecord{
		SourceAddress:   stmt.ColumnText(0),
		BaseFileName:    stmt.ColumnText(1),
		InputSizeBytes:  stmt.ColumnInt64(2),
		OutputSizeBytes: stmt.ColumnInt64(3),
		Timestamp:       ts.UTC(),
		JobID:           stmt.ColumnText(5),
		InputDigest:     stmt.ColumnText(6),
	}, nil
}

// hostOf strips the port from a host:port address.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Verify Sink implements persist.Sink.
var _ persist.Sink = (*Sink)(nil)
