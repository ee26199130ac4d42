package weave

import (
	"errors"
	"fmt"

	"github.com/opd-ai/weave/message"
)

// Re-exported so callers can compare against a single package's sentinel
// set without importing message/id directly, realized as typed values
// the way crypto/keystore.go wraps OS errors for its callers.
var (
	ErrMalformedHeader = message.ErrMalformedHeader
	ErrUnsupportedMessageType = message.ErrUnsupportedMessageType
	ErrSignatureMismatch = message.ErrSignatureMismatch
	ErrMacMismatch = message.ErrMacMismatch
	ErrKeyNotFound = message.ErrKeyNotFound
)

// ErrOrphanMessage is returned by Receive when the message's linked
// parent spongos is not in the local cache - either because lean mode
// evicted it, or because the caller never received/cached the parent.
// It is not a protocol violation: the caller may retry after a sync
// once the parent becomes available.
var ErrOrphanMessage = errors.New("weave: parent spongos unavailable (orphan message)")

// ErrPermissionDenied is returned when the local identity lacks the
// permission a message type requires, checked before any transport call.
var ErrPermissionDenied = errors.New("weave: identity lacks required permission for this operation")

// ErrDuplicateSequence is returned when a (publisher, sequence) pair has
// already been processed with different bytes than the ones just seen.
var ErrDuplicateSequence = errors.New("weave: publisher and sequence already processed with different bytes")

// ErrStateCorruption marks an internal invariant violation that should
// be unreachable in a correct implementation.
var ErrStateCorruption = errors.New("weave: internal invariant violated")

// ErrNotUnique is returned by Receive when the transport returns more
// than one candidate for an address - the core requires exactly one.
var ErrNotUnique = errors.New("weave: transport returned more than one candidate for this address")

// ErrNoIdentity is returned by operations that require a local signing
// identity (send, subscribe, keyload) when the User was built without
// one.
var ErrNoIdentity = errors.New("weave: operation requires a local identity")

// ErrUnknownBranch is returned when an operation names a topic this user
// has never created, subscribed to, or received a branch announce for.
var ErrUnknownBranch = errors.New("weave: unknown branch topic")

// ErrNoContentKey is returned when sending a TaggedPacket on a branch
// whose content key this user has not installed (no matching keyload
// seen yet).
var ErrNoContentKey = errors.New("weave: no content key installed for this branch")

// ErrUnsupportedSaveVersion is returned by Import when the blob's
// 2-byte version prefix does not match the one this build writes; older
// versions are rejected outright rather than guessed at.
var ErrUnsupportedSaveVersion = errors.New("weave: unsupported or unrecognized save format version")

// TransportError wraps an opaque error returned by the Transport
// collaborator (the TransportFailure kind), retryable at the
// caller's discretion.
type TransportError struct {
	Op string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("weave: transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func wrapTransportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
