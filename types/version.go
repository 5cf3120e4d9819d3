package types

// Version is the canonical project version.
// The CLI, the wire format and the worker subprocess share this version
// (lockstep versioning).
const Version = "0.3.0"
