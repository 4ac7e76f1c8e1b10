package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/pressroom/types"
)

// ErrNoRecordsFound is returned when no conversion record matches a query.
var ErrNoRecordsFound = errors.New("no conversion records found")

// Query filters a record listing.
type Query struct {
	// Day restricts results to one partition (YYYY-MM-DD). Empty means all.
	Day string
	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// QueryRecords lists conversion records, newest snapshot first.
// A job_id seen in a newer snapshot shadows older copies.
//
// Returns ErrNoRecordsFound if nothing matches.
func QueryRecords(ctx context.Context, ds lode.Dataset, q Query) ([]*types.ConversionRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	seen := make(map[string]struct{})
	var out []*types.ConversionRecord

	// Iterate in reverse (latest first); snapshots are ordered by creation time
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "day", q.Day) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			// Manifest paths are a coarse pre-filter; record fields are authoritative.
			if q.Day != "" && toString(m["day"]) != q.Day {
				continue
			}
			rec, err := fromRecordMap(m)
			if err != nil {
				continue
			}
			if _, dup := seen[rec.JobID]; dup {
				continue
			}
			seen[rec.JobID] = struct{}{}
			out = append(out, rec)

			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoRecordsFound
	}
	return out, nil
}
