package store

import "errors"

// ErrNoBinding is returned by the device-keyed operations (ReleaseByDevice,
// ResetDeviceBinding, BoundUsername) when the device holds no account.
// Engine maps this onto its own NoBinding error class.
var ErrNoBinding = errors.New("store: device holds no account")

// ErrNotFound is a generic not-found sentinel for single-row lookups.
var ErrNotFound = errors.New("store: not found")
