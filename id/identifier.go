package id

import (
	"crypto/ed25519"

	"github.com/opd-ai/weave/ddml"
)

// IdentifierKind discriminates the three Identifier variants. Values are
// the wire tags used by mask(identifier) in HDF's publisher field and
// keyload's recipient list.
type IdentifierKind uint8

const (
	IdentifierEd25519 IdentifierKind = 0
	IdentifierPSK IdentifierKind = 1
	IdentifierDID IdentifierKind = 2
)

// PSKIDSize is the width of a pre-shared-key id.
const PSKIDSize = 16

// Identifier is the closed sum Ed25519(pk) | Psk(id16) | DID(methodId).
// It is comparable and safe to use as a map key: every field is a
// fixed-size array or string, never a slice.
type Identifier struct {
	kind IdentifierKind
	ed25519PK [ed25519.PublicKeySize]byte
	pskID [PSKIDSize]byte
	didMethodID string
}

// NewEd25519Identifier wraps an Ed25519 public key.
func NewEd25519Identifier(pk ed25519.PublicKey) Identifier {
	var id Identifier
	id.kind = IdentifierEd25519
	copy(id.ed25519PK[:], pk)
	return id
}

// NewPSKIdentifier wraps a pre-shared-key id.
func NewPSKIdentifier(pskID [PSKIDSize]byte) Identifier {
	return Identifier{kind: IdentifierPSK, pskID: pskID}
}

// NewDIDIdentifier wraps a DID method id string.
func NewDIDIdentifier(methodID string) Identifier {
	return Identifier{kind: IdentifierDID, didMethodID: methodID}
}

// Kind reports which variant this identifier holds.
func (id Identifier) Kind() IdentifierKind {
	return id.kind
}

// Ed25519PublicKey returns the wrapped public key. Only valid when
// Kind() == IdentifierEd25519.
func (id Identifier) Ed25519PublicKey() ed25519.PublicKey {
	pk := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pk, id.ed25519PK[:])
	return pk
}

// PSKID returns the wrapped PSK id. Only valid when Kind() ==
// IdentifierPSK.
func (id Identifier) PSKID() [PSKIDSize]byte {
	return id.pskID
}

// DIDMethodID returns the wrapped DID method id. Only valid when Kind()
// == IdentifierDID.
func (id Identifier) DIDMethodID() string {
	return id.didMethodID
}

// Bytes returns the canonical tagged byte representation used for
// equality and for deriving MsgId: two identifiers are equal exactly
// when their canonical representations are byte-equal.
func (id Identifier) Bytes() []byte {
	switch id.kind {
	case IdentifierEd25519:
		out := make([]byte, 1+ed25519.PublicKeySize)
		out[0] = byte(IdentifierEd25519)
		copy(out[1:], id.ed25519PK[:])
		return out
	case IdentifierPSK:
		out := make([]byte, 1+PSKIDSize)
		out[0] = byte(IdentifierPSK)
		copy(out[1:], id.pskID[:])
		return out
	case IdentifierDID:
		out := make([]byte, 1+len(id.didMethodID))
		out[0] = byte(IdentifierDID)
		copy(out[1:], id.didMethodID)
		return out
	default:
		return nil
	}
}

// Equal reports whether two identifiers have the same variant and
// payload.
func (id Identifier) Equal(other Identifier) bool {
	return id == other
}

// WrapTagged serializes identifier through mask, matching the
// "mask(identifier) (tagged variant: public key or PSK id)" step used by
// keyload and HDF's publisher field.
func (id Identifier) WrapTagged(ctx *ddml.WrapContext) error {
	if err := ctx.MaskUint8(byte(id.kind)); err != nil {
		return err
	}
	switch id.kind {
	case IdentifierEd25519:
		return ctx.MaskFixed(id.ed25519PK[:])
	case IdentifierPSK:
		return ctx.MaskFixed(id.pskID[:])
	case IdentifierDID:
		return ctx.MaskVar([]byte(id.didMethodID))
	default:
		return ErrUnknownIdentifierTag
	}
}

// UnwrapTagged parses the tagged form produced by WrapTagged.
func UnwrapTagged(ctx *ddml.UnwrapContext) (Identifier, error) {
	tagByte, err := ctx.MaskUint8()
	if err != nil {
		return Identifier{}, err
	}
	switch IdentifierKind(tagByte) {
	case IdentifierEd25519:
		pk, err := ctx.MaskFixed(ed25519.PublicKeySize)
		if err != nil {
			return Identifier{}, err
		}
		return NewEd25519Identifier(pk), nil
	case IdentifierPSK:
		raw, err := ctx.MaskFixed(PSKIDSize)
		if err != nil {
			return Identifier{}, err
		}
		var pskID [PSKIDSize]byte
		copy(pskID[:], raw)
		return NewPSKIdentifier(pskID), nil
	case IdentifierDID:
		raw, err := ctx.MaskVar()
		if err != nil {
			return Identifier{}, err
		}
		return NewDIDIdentifier(string(raw)), nil
	default:
		return Identifier{}, ErrUnknownIdentifierTag
	}
}

// AbsorbTagged serializes identifier through absorb, for places where
// it travels in the clear: the announce's author identifier, the
// Permission codec, and the persisted save format. HDF's publisher field
// and keyload recipient identifiers use WrapTagged instead.
func (id Identifier) AbsorbTagged(ctx *ddml.WrapContext) error {
	if err := ctx.AbsorbUint8(byte(id.kind)); err != nil {
		return err
	}
	switch id.kind {
	case IdentifierEd25519:
		return ctx.AbsorbFixed(id.ed25519PK[:])
	case IdentifierPSK:
		return ctx.AbsorbFixed(id.pskID[:])
	case IdentifierDID:
		return ctx.AbsorbVar([]byte(id.didMethodID))
	default:
		return ErrUnknownIdentifierTag
	}
}

// SizeofTagged returns the on-wire width WrapTagged/AbsorbTagged would
// occupy for this identifier - both share the same width, since sizeof
// never distinguishes absorb from mask.
func (id Identifier) SizeofTagged() int {
	switch id.kind {
	case IdentifierEd25519:
		return 1 + ed25519.PublicKeySize
	case IdentifierPSK:
		return 1 + PSKIDSize
	case IdentifierDID:
		return 1 + ddml.SizeOfSize(uint64(len(id.didMethodID))) + len(id.didMethodID)
	default:
		return 0
	}
}

// UnabsorbTagged parses the tagged form produced by AbsorbTagged.
func UnabsorbTagged(ctx *ddml.UnwrapContext) (Identifier, error) {
	tagByte, err := ctx.AbsorbUint8()
	if err != nil {
		return Identifier{}, err
	}
	switch IdentifierKind(tagByte) {
	case IdentifierEd25519:
		pk, err := ctx.AbsorbFixed(ed25519.PublicKeySize)
		if err != nil {
			return Identifier{}, err
		}
		return NewEd25519Identifier(pk), nil
	case IdentifierPSK:
		raw, err := ctx.AbsorbFixed(PSKIDSize)
		if err != nil {
			return Identifier{}, err
		}
		var pskID [PSKIDSize]byte
		copy(pskID[:], raw)
		return NewPSKIdentifier(pskID), nil
	case IdentifierDID:
		raw, err := ctx.AbsorbVar()
		if err != nil {
			return Identifier{}, err
		}
		return NewDIDIdentifier(string(raw)), nil
	default:
		return Identifier{}, ErrUnknownIdentifierTag
	}
}
