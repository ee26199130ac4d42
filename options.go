package weave

import (
	"errors"

	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/transport"
)

// Options configures a new User, following the validated-constructor
// pattern toxcore.Options/NewOptions uses: sensible defaults from
// DefaultOptions, explicit validation in New/NewAuthor/NewSubscriber
// rather than panicking on a misconfigured zero value.
type Options struct {
	// Identity is this user's signing/exchange keypair. Required for
	// every role except a pure observer that only ever calls Receive on
	// TaggedPacket-only branches.
	Identity *id.Identity

	// PSKs is the user's pre-shared-key table, consulted when opening
	// keyload recipient slots addressed by PSK id. A nil table is
	// replaced by an empty one.
	PSKs *id.PSKTable

	// Transport is the collaborator every send/receive call suspends
	// through. Required.
	Transport transport.Transport

	// Resolver resolves DID-tagged signatures. A nil resolver is valid:
	// DID-tagged messages are then rejected with id.ErrDIDUnsupported
	// rather than attempted.
	Resolver id.DIDResolver

	// Lean bounds memory to the announce spongos, the most recent
	// per-branch spongos, and self-authored spongos.
	Lean bool
}

// DefaultOptions returns an Options with an empty PSK table and Lean
// disabled. Identity and Transport still need to be set by the caller.
func DefaultOptions() *Options {
	return &Options{PSKs: id.NewPSKTable()}
}

func (o *Options) normalized() (*Options, error) {
	if o == nil {
		return nil, errors.New("weave: nil Options")
	}
	out := *o
	if out.Transport == nil {
		return nil, errors.New("weave: Options.Transport is required")
	}
	if out.PSKs == nil {
		out.PSKs = id.NewPSKTable()
	}
	return &out, nil
}
