package types

// ServerMeta identifies a running server instance.
// Every log entry carries these fields.
type ServerMeta struct {
	// InstanceID is unique per process start.
	InstanceID string
	// Version is the build version.
	Version string
}
