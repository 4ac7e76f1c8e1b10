// Package types defines core domain types for the pressroom server and client.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"path/filepath"
	"strings"
	"time"
)

// ConversionType identifies the kind of transformation a job requests.
type ConversionType string

// ConversionTxt2PDF is currently the only supported conversion.
const ConversionTxt2PDF ConversionType = "txt2pdf"

// File extensions for the supported conversion.
const (
	SourceExtension = ".txt"
	OutputExtension = ".pdf"
)

// SupportedConversions returns the set of conversion types the server accepts.
func SupportedConversions() []ConversionType {
	return []ConversionType{ConversionTxt2PDF}
}

// IsSupported reports whether the conversion type is accepted by the server.
func (c ConversionType) IsSupported() bool {
	for _, s := range SupportedConversions() {
		if c == s {
			return true
		}
	}
	return false
}

// ConversionRequest is the header a client sends before the source document.
// FileSize must equal the number of body bytes that follow.
type ConversionRequest struct {
	ConversionType ConversionType `json:"conversion_type"`
	FileName       string         `json:"file_name"`
	FileSize       int64          `json:"file_size"`
}

// HasSourceExtension reports whether FileName ends in the source extension.
// The comparison is case-insensitive.
func (r *ConversionRequest) HasSourceExtension() bool {
	return strings.HasSuffix(strings.ToLower(r.FileName), SourceExtension)
}

// BaseName returns the file name with the source extension stripped.
func (r *ConversionRequest) BaseName() string {
	return StripExtension(r.FileName)
}

// OutputName returns the artifact name announced to the client.
func (r *ConversionRequest) OutputName() string {
	return r.BaseName() + OutputExtension
}

// ConversionResponse is the header the server sends back.
// Exactly one of the two shapes is produced per request:
//   - success: FileName set, FileSize is the artifact size
//   - failure: Error set, FileSize is zero and no body follows
type ConversionResponse struct {
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size"`
	Error    string `json:"error,omitempty"`
}

// IsError reports whether the response carries a failure.
func (r *ConversionResponse) IsError() bool {
	return r.Error != ""
}

// NewSuccessResponse builds the success response shape.
func NewSuccessResponse(name string, size int64) *ConversionResponse {
	return &ConversionResponse{FileName: name, FileSize: size}
}

// NewErrorResponse builds the failure response shape.
func NewErrorResponse(msg string) *ConversionResponse {
	return &ConversionResponse{Error: msg}
}

// ConversionRecord is the structured log entry persisted for each completed job.
// A connection handler creates it; the persistence worker owns it once enqueued.
type ConversionRecord struct {
	JobID           string    `json:"job_id"`
	SourceAddress   string    `json:"source_address"`
	BaseFileName    string    `json:"base_file_name"`
	InputSizeBytes  int64     `json:"input_size_bytes"`
	OutputSizeBytes int64     `json:"output_size_bytes"`
	InputDigest     string    `json:"input_digest,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// StripExtension returns name without its final extension.
// Only the last path element is considered.
func StripExtension(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
