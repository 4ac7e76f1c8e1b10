package lode

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/pressroom/types"
)

func TestToRecordMap_PartitionKey(t *testing.T) {
	rec := &types.ConversionRecord{
		JobID:     "job-1",
		Timestamp: time.Date(2026, 2, 6, 23, 30, 0, 0, time.FixedZone("x", -2*3600)),
	}

	m := toRecordMap(rec)
	if m["record_kind"] != RecordKindConversion {
		t.Errorf("record_kind = %v", m["record_kind"])
	}
	// 23:30 at -02:00 is 01:30 UTC the next day.
	if m["day"] != "2026-02-07" {
		t.Errorf("day = %v, want 2026-02-07", m["day"])
	}
	if _, ok := m["input_digest"]; ok {
		t.Error("empty input_digest should be omitted")
	}
}

func TestFromRecordMap_JSONNumbers(t *testing.T) {
	m := map[string]any{
		"record_kind":       RecordKindConversion,
		"job_id":            "job-1",
		"source_address":    "10.0.0.1:4000",
		"base_file_name":    "a",
		"input_size_bytes":  float64(37),
		"output_size_bytes": float64(1830),
		"input_digest":      "abcd",
		"timestamp":         "2026-02-07T12:00:00.5Z",
	}

	rec, err := fromRecordMap(m)
	if err != nil {
		t.Fatalf("fromRecordMap failed: %v", err)
	}
	if rec.InputSizeBytes != 37 || rec.OutputSizeBytes != 1830 {
		t.Errorf("sizes = %d/%d", rec.InputSizeBytes, rec.OutputSizeBytes)
	}
	if rec.InputDigest != "abcd" || rec.SourceAddress != "10.0.0.1:4000" {
		t.Errorf("decoded %+v", rec)
	}
	if want := time.Date(2026, 2, 7, 12, 0, 0, 5e8, time.UTC); !rec.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want)
	}
}

func TestFromRecordMap_Invalid(t *testing.T) {
	tests := map[string]map[string]any{
		"wrong kind":     {"record_kind": "metrics", "job_id": "j", "timestamp": "2026-02-07T12:00:00Z"},
		"missing job":    {"record_kind": RecordKindConversion, "timestamp": "2026-02-07T12:00:00Z"},
		"bad timestamp":  {"record_kind": RecordKindConversion, "job_id": "j", "timestamp": "yesterday"},
		"missing fields": {},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := fromRecordMap(m); !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}
