package lode

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/pressroom/types"
)

// RecordKindConversion discriminates conversion records from anything else
// that may share the dataset.
const RecordKindConversion = "conversion"

// ErrInvalidRecord is returned when a stored map cannot be decoded.
var ErrInvalidRecord = errors.New("invalid conversion record")

// toRecordMap converts a ConversionRecord to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any carrying the
// partition keys.
func toRecordMap(rec *types.ConversionRecord) map[string]any {
	m := map[string]any{
		"record_kind":       RecordKindConversion,
		"job_id":            rec.JobID,
		"source_address":    rec.SourceAddress,
		"base_file_name":    rec.BaseFileName,
		"input_size_bytes":  rec.InputSizeBytes,
		"output_size_bytes": rec.OutputSizeBytes,
		"timestamp":         rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"day":               DeriveDay(rec.Timestamp), // partition key
	}
	if rec.InputDigest != "" {
		m["input_digest"] = rec.InputDigest
	}
	return m
}

// fromRecordMap decodes a stored map. JSON numbers arrive as float64 after
// a read; int64 values written in-process are accepted too.
func fromRecordMap(m map[string]any) (*types.ConversionRecord, error) {
	if toString(m["record_kind"]) != RecordKindConversion {
		return nil, fmt.Errorf("%w: record_kind %v", ErrInvalidRecord, m["record_kind"])
	}
	jobID := toString(m["job_id"])
	if jobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", ErrInvalidRecord)
	}

	ts, err := time.Parse(time.RFC3339Nano, toString(m["timestamp"]))
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidRecord, err)
	}

	return &types.ConversionRecord{
		JobID:           jobID,
		SourceAddress:   toString(m["source_address"]),
		BaseFileName:    toString(m["base_file_name"]),
		InputSizeBytes:  toInt64(m["input_size_bytes"]),
		OutputSizeBytes: toInt64(m["output_size_bytes"]),
		InputDigest:     toString(m["input_digest"]),
		Timestamp:       ts,
	}, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a numeric value to int64, returning zero otherwise.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
