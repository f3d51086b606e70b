// Package engine implements the assignment state machine: picking, reusing,
// releasing and reporting on accounts. It is the boundary between HTTP and
// persistence — internal/transport/httpapi never talks to internal/store
// directly.
package engine

import "errors"

// Error taxonomy. internal/transport/httpapi maps each of these to a
// documented HTTP status and envelope.
var (
	// ErrBadRequest: missing required path/body parameters, malformed JSON,
	// or a reason outside the configured vocabulary.
	ErrBadRequest = errors.New("engine: bad request")

	// ErrNoCandidate: no account satisfies the predicates, the device-login
	// gate fired, or the iv purpose is disabled by config.
	ErrNoCandidate = errors.New("engine: no account available")

	// ErrStoreError: a database exception occurred during selection or
	// reservation.
	ErrStoreError = errors.New("engine: store error")

	// ErrNoBinding: a release/info endpoint was called for a device that
	// holds no account. Not a failure — callers should respond 200 ok.
	ErrNoBinding = errors.New("engine: device holds no account")

	// ErrIgnored: an idempotent update request changed nothing (e.g.
	// set_level called with the account's current level).
	ErrIgnored = errors.New("engine: no-op")
)
