package types

// Version is the canonical project version.
// The server, the client and the wire protocol share this version.
const Version = "0.3.0"

// ProtocolVersion identifies the framed wire protocol revision.
// Bump only on a breaking change to header width, padding or field names.
const ProtocolVersion = "1"
