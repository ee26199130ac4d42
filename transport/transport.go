// Package transport defines the collaborator a User sends and receives
// wire bytes through. Wrap/unwrap are pure computation;
// every suspension point in the core passes through this interface.
package transport

import (
	"context"

	"github.com/opd-ai/weave/message"
)

// SendResponse is the outcome of a send_message call. Accepted reports
// whether the transport newly stored the message at address; a replay
// of an already-delivered address returns Accepted == false without
// error, so sends stay idempotent by address.
type SendResponse struct {
	Address message.Address
	Accepted bool
}

// Transport is the async collaborator every send/receive/sync call in
// the core suspends through. Implementations must be safe
// for concurrent use by independent Users sharing the same backing
// store; a single User is not required to call it concurrently with
// itself.
type Transport interface {
	// SendMessage delivers bytes at address. Calling it again with the
	// same address and the same bytes is a no-op (SendResponse.Accepted
	// == false, err == nil); calling it again with different bytes at an
	// address already occupied is a TransportFailure-class error.
	SendMessage(ctx context.Context, address message.Address, bytes []byte) (SendResponse, error)

	// RecvMessages returns every candidate message stored at address.
	// The core requires exactly one candidate to accept a message as
	// unambiguous; more than one is a caller-level NotUnique condition,
	// not a transport error.
	RecvMessages(ctx context.Context, address message.Address) ([][]byte, error)
}
