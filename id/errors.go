package id

import "errors"

// ErrUnknownIdentifierTag is returned when an identifier's wire tag does
// not match Ed25519 (0), PSK (1), or DID (2).
var ErrUnknownIdentifierTag = errors.New("id: unknown identifier tag")

// ErrUnsupportedPermissionDuration is returned when a permission's
// duration tag is anything other than Perpetual. Non-Perpetual
// durations are reserved on the wire but rejected here until their
// semantics are specified.
var ErrUnsupportedPermissionDuration = errors.New("id: only perpetual permission durations are supported")

// ErrDIDUnsupported is returned when a DID-tagged identifier or identity
// is encountered but no DIDResolver was configured.
var ErrDIDUnsupported = errors.New("id: DID support is not configured")

// ErrPSKNotFound is returned when a PSK lookup by id misses.
var ErrPSKNotFound = errors.New("id: no psk registered for this id")
