package models

import (
	"errors"
	"fmt"
)

// ErrGuardBlocked marks a send aborted by the instance allow-list guard.
// Audited and logged, never a hard failure.
var ErrGuardBlocked = errors.New("instance not in allowed base URLs, send blocked")

// ValidationError flags malformed order data. The order is skipped, the
// batch continues.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// TransportError wraps a network/timeout/non-2xx failure. Captured into
// the audit log; callers get a failure result instead of a panic path.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StructuralPayloadError flags an inbound payload the processor cannot
// interpret at all. The owning job rolls to failed; other jobs continue.
type StructuralPayloadError struct {
	Err error
}

func (e *StructuralPayloadError) Error() string {
	return "structural payload error: " + e.Err.Error()
}

func (e *StructuralPayloadError) Unwrap() error { return e.Err }
