package ddml

import "errors"

// ErrNonMinimalSize is returned when a size-prefixed varint's leading
// digit byte is zero, which means a shorter encoding of the same value
// exists. Rejected outright, not merely discouraged.
var ErrNonMinimalSize = errors.New("ddml: size varint is not minimally encoded")

// ErrSizeOverflow is returned when a size-prefixed varint's byte count
// exceeds what fits in a uint64.
var ErrSizeOverflow = errors.New("ddml: size varint byte count exceeds 8")

// ErrShortBuffer is returned by unwrap primitives when the input is
// exhausted before the schema is satisfied.
var ErrShortBuffer = errors.New("ddml: input exhausted before schema was satisfied")

// ErrMacMismatch is returned by UnwrapContext.Squeeze when the bytes
// read from the wire do not match the spongos squeeze recomputed locally.
var ErrMacMismatch = errors.New("ddml: squeezed mac does not match wire value")

// ErrUnknownTag is returned when a tagged-sum discriminant byte does not
// match any known variant (e.g. an unsupported sign/verify tag).
var ErrUnknownTag = errors.New("ddml: unknown tagged-sum discriminant")

// ErrReservedBitsSet is returned when a field defined with reserved bits
// has any of them set on the wire.
var ErrReservedBitsSet = errors.New("ddml: reserved bits are non-zero")

// ErrSignatureMismatch is returned when an Ed25519 signature fails to
// verify against the squeezed external hash.
var ErrSignatureMismatch = errors.New("ddml: signature verification failed")
