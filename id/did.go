package id

import (
	"context"
	"crypto/ed25519"

	"github.com/opd-ai/weave/ddml"
)

// DIDResolver is the external collaborator that resolves a DID method id
// plus verification-method fragment to key material. Only its interface
// matters here; no concrete resolver ships with this module. Calls are
// a suspension point.
type DIDResolver interface {
	// ResolveSigningKey returns the Ed25519 public key bound to fragment
	// within did's document.
	ResolveSigningKey(ctx context.Context, did, fragment string) (ed25519.PublicKey, error)
	// ResolveExchangeKey returns the x25519 public key bound to fragment
	// within did's document.
	ResolveExchangeKey(ctx context.Context, did, fragment string) ([32]byte, error)
}

// Verify checks a tagged signature against identifier, dispatching to
// the Ed25519 path directly or the DID path through resolver. identifier
// is the publisher identity already parsed from the message (e.g. HDF's
// publisher field); this call only validates the attached signature.
//
// A conforming implementation may pass a nil resolver, in which case any
// DID-tagged signature is rejected with ErrDIDUnsupported rather than
// attempted - tag u8(1) with no DID support compiled in.
func Verify(ctx context.Context, uctx *ddml.UnwrapContext, identifier Identifier, resolver DIDResolver) error {
	tagByte, err := uctx.AbsorbUint8()
	if err != nil {
		return err
	}
	switch tagByte {
	case signTagEd25519:
		if identifier.Kind() != IdentifierEd25519 {
			return ErrUnknownIdentifierTag
		}
		return uctx.VerifyEd25519(identifier.Ed25519PublicKey())
	case signTagDID:
		if identifier.Kind() != IdentifierDID {
			return ErrUnknownIdentifierTag
		}
		if resolver == nil {
			return ErrDIDUnsupported
		}
		fragment, err := uctx.AbsorbVar()
		if err != nil {
			return err
		}
		pub, err := resolver.ResolveSigningKey(ctx, identifier.DIDMethodID(), string(fragment))
		if err != nil {
			return err
		}
		return uctx.VerifyEd25519(pub)
	default:
		return ErrUnknownIdentifierTag
	}
}
