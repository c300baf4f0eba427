package engine

import "errors"

// ErrDraining is the sentinel error the dispatcher can return. Wire-format
// client errors (bad command line, unknown command, body framing, job
// size) live in internal/protocol instead — those are parser-layer
// concerns the engine never sees. Every other engine lookup (Delete,
// Release, Bury, Touch, PeekAny, PeekID) reports absence via a plain ok
// bool rather than an error, since "not found" isn't exceptional for those
// callers — the dispatcher always has a concrete NOT_FOUND reply ready.
var (
	// ErrDraining — SERVER_ERROR 2 draining. Returned by Put while the
	// server is in drain mode (spec §4.8).
	ErrDraining = errors.New("draining")
)
