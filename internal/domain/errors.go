package domain

import "errors"

// The host's closed error taxonomy. Every layer converts foreign errors
// (pgx, exec, json) into one of these at its own boundary so callers
// never have to understand a lower layer's native error types.
var (
	// ErrStorageUnavailable means the action log's backing store could
	// not be reached or did not commit; the caller may retry.
	ErrStorageUnavailable = errors.New("domain: storage unavailable")

	// ErrLogCorrupt means the log reported an index as committed but the
	// entry could not be fetched, or fetched content failed to decode.
	// This is not retryable.
	ErrLogCorrupt = errors.New("domain: log corrupt")

	// ErrModuleNotFound means no module bytes exist for the requested
	// ModuleId.
	ErrModuleNotFound = errors.New("domain: module not found")

	// ErrModuleCompile means module bytes were found but failed to
	// compile/load into an executable artifact.
	ErrModuleCompile = errors.New("domain: module compile failed")

	// ErrSandboxTrap means a sandbox run started but the module process
	// could not be started, exited abnormally, or timed out.
	ErrSandboxTrap = errors.New("domain: sandbox trap")

	// ErrProtocolMismatch means the envelope variant presented did not
	// match the variant expected by the operation (the WrongVariant
	// case of the version façade).
	ErrProtocolMismatch = errors.New("domain: protocol mismatch")

	// ErrLogicFailure means the fold pipeline failed at or before the
	// index an action was waiting for; action.Handler wraps any fold
	// error (a sandbox trap, an undecodable module response) in it.
	ErrLogicFailure = errors.New("domain: module logic failure")

	// ErrPipelineEnded means the fold pipeline for a module id has
	// terminated (e.g. after a fold failure) and cannot serve further
	// requests.
	ErrPipelineEnded = errors.New("domain: fold pipeline ended")

	// ErrAuth means a credential could not be obtained or was rejected.
	ErrAuth = errors.New("domain: authentication failed")
)

// SandboxTrapError wraps ErrSandboxTrap with the captured stderr tail so
// operators can diagnose the trap without re-running the module.
type SandboxTrapError struct {
	ModuleID   ModuleId
	ExitCode   int
	StderrTail string
	Cause      error
}

func (e *SandboxTrapError) Error() string {
	if e.Cause != nil {
		return "domain: sandbox trap for " + string(e.ModuleID) + ": " + e.Cause.Error()
	}
	return "domain: sandbox trap for " + string(e.ModuleID)
}

func (e *SandboxTrapError) Unwrap() error { return ErrSandboxTrap }
