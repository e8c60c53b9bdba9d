// Package domain holds the core value types shared across the log,
// module provider, sandbox, fold, and façade layers: opaque byte blobs,
// module identity, log entries, and the snapshot a fold produces.
package domain

import "fmt"

// ActionBlob is an opaque, module-version-specific encoding of an action.
// The host never interprets its contents; only the module does.
type ActionBlob []byte

// ResponseBlob is an opaque, module-version-specific encoding of the
// response to an action.
type ResponseBlob []byte

// QueryBlob is an opaque, module-version-specific encoding of a query.
type QueryBlob []byte

// QueryResponseBlob is an opaque, module-version-specific encoding of a
// query's response.
type QueryResponseBlob []byte

// StateBlob is an opaque, module-owned encoding of accumulated state.
// A nil StateBlob represents "no state yet" (the initial fold value).
type StateBlob []byte

// ModuleId names a specific compiled bytecode artifact by semantic
// version, e.g. "1.2.0". Module identity is immutable: the bytes backing
// a given ModuleId never change once published.
type ModuleId string

// String implements fmt.Stringer.
func (m ModuleId) String() string { return string(m) }

// LogEntry is a single committed entry in the append-ordered log: the
// action that was appended plus the module version it was appended
// against (the module version in force at append time, not necessarily
// the version used to fold it later).
type LogEntry struct {
	Index    uint64
	ModuleID ModuleId
	Action   ActionBlob
}

// Snapshot is the state produced by folding the log up to and including
// Index, under a specific ModuleId's evolve function.
type Snapshot struct {
	Index        uint64
	ModuleID     ModuleId
	State        StateBlob
	LastResponse ResponseBlob
}

// CompiledModule is an opaque, host-specific compiled artifact for a
// ModuleId, produced by a sandbox.Compiler and cached by sandbox.Runner.
type CompiledModule struct {
	ModuleID ModuleId
	Artifact []byte
}

// Credential is a bearer token (or equivalent) with a known expiry,
// handed out by a tokensource.Source.
type Credential struct {
	Token     string
	ExpiresAt int64 // unix seconds
}

// Expired reports whether the credential has passed its expiry, given
// the current unix time in seconds.
func (c Credential) Expired(nowUnix int64) bool {
	return nowUnix >= c.ExpiresAt
}

// TraceContext carries W3C trace propagation fields across the sandbox
// IPC boundary, where only plain bytes (not a Go context.Context) can
// cross the process edge.
type TraceContext struct {
	TraceParent string
	TraceState  string
}

// NotFoundError indicates a lookup (module version, log index) found
// nothing, distinguished from a genuine storage failure.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
