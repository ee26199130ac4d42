package id

import (
	"crypto/ed25519"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/spongos"
)

// IdentityKind discriminates the two Identity variants.
type IdentityKind uint8

const (
	IdentityEd25519 IdentityKind = IdentityKind(IdentifierEd25519)
	IdentityDID IdentityKind = IdentityKind(IdentifierDID)
)

// DIDInfo carries the fields a DID identity needs beyond its key
// material: the document identifier, the resolver endpoint, and the
// fragment labels that select which verification method within the
// document corresponds to this identity's keys.
type DIDInfo struct {
	DID string
	ClientURL string
	ExchangeFragment string
	SigningFragment string
}

// Identity is the closed sum Ed25519(secret) | DID(info, keypair,
// exchangeKeypair). It deterministically projects to an
// Identifier and exposes signing plus x25519 key agreement.
type Identity struct {
	kind IdentityKind

	ed25519Priv ed25519.PrivateKey
	exchPriv [32]byte
	exchPub [32]byte

	did DIDInfo
	didOK bool // true once did-specific fields are populated
}

// NewEd25519Identity derives an Ed25519 signing key and a companion
// x25519 exchange key from seed via a spongos-PRNG, so the same seed
// always reproduces the same identity.
func NewEd25519Identity(seed []byte) (*Identity, error) {
	s := spongos.New()
	s.Absorb(seed)
	s.Commit()

	signSeed := s.Squeeze(ed25519.SeedSize)
	exchSeed := s.Squeeze(32)

	priv := ed25519.NewKeyFromSeed(signSeed)

	var exchPriv, exchPub [32]byte
	copy(exchPriv[:], exchSeed)
	clampX25519(&exchPriv)
	pub, err := curve25519.X25519(exchPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("id: deriving x25519 exchange key: %w", err)
	}
	copy(exchPub[:], pub)

	logrus.WithFields(logFields("new_ed25519_identity")).WithField("signing_pub", previewBytes(priv.Public().(ed25519.PublicKey))).Debug("derived identity from seed")

	return &Identity{
		kind: IdentityEd25519,
		ed25519Priv: priv,
		exchPriv: exchPriv,
		exchPub: exchPub,
	}, nil
}

// NewDIDIdentity builds a DID-backed identity from already-resolved key
// material. Unlike NewEd25519Identity, DID key derivation is an external
// concern (the DID document, not a local seed) - callers obtain the
// signing and exchange keys from wherever their DID method produces
// them and hand them in directly.
func NewDIDIdentity(info DIDInfo, signPriv ed25519.PrivateKey, exchPriv [32]byte) (*Identity, error) {
	clampX25519(&exchPriv)
	pub, err := curve25519.X25519(exchPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("id: deriving x25519 exchange key: %w", err)
	}
	var exchPub [32]byte
	copy(exchPub[:], pub)

	return &Identity{
		kind: IdentityDID,
		ed25519Priv: signPriv,
		exchPriv: exchPriv,
		exchPub: exchPub,
		did: info,
		didOK: true,
	}, nil
}

func clampX25519(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// Kind reports which variant this identity holds.
func (i *Identity) Kind() IdentityKind {
	return i.kind
}

// Identifier deterministically projects this identity to its public
// Identifier.
func (i *Identity) Identifier() Identifier {
	switch i.kind {
	case IdentityDID:
		return NewDIDIdentifier(i.did.DID)
	default:
		return NewEd25519Identifier(i.ed25519Priv.Public().(ed25519.PublicKey))
	}
}

// SigningPublicKey returns the Ed25519 public key counterpart to the
// signing secret.
func (i *Identity) SigningPublicKey() ed25519.PublicKey {
	return i.ed25519Priv.Public().(ed25519.PublicKey)
}

// ExchangeKeyPair returns the x25519 private/public key pair used for
// key agreement in keyload and subscribe, to encrypt or decrypt a
// 32-byte key.
func (i *Identity) ExchangeKeyPair() (priv, pub [32]byte) {
	return i.exchPriv, i.exchPub
}

// DIDInfo returns the DID-specific fields. Only valid when Kind() ==
// IdentityDID.
func (i *Identity) DIDInfo() DIDInfo {
	return i.did
}

// ExportedIdentity is the raw key material behind an Identity, in the
// form persist.go's encrypted save format actually stores: enough to
// reconstruct signing and exchange capability without re-deriving from
// a seed, since a DID identity has no seed to re-derive from.
type ExportedIdentity struct {
	Kind IdentityKind
	SigningPriv ed25519.PrivateKey
	ExchangePriv [32]byte
	DID DIDInfo
}

// Export returns i's raw key material.
func (i *Identity) Export() ExportedIdentity {
	return ExportedIdentity{
		Kind: i.kind,
		SigningPriv: append(ed25519.PrivateKey(nil), i.ed25519Priv...),
		ExchangePriv: i.exchPriv,
		DID: i.did,
	}
}

// ImportIdentity reconstructs an Identity from previously exported key
// material, recomputing the exchange public key rather than trusting a
// stored one.
func ImportIdentity(e ExportedIdentity) (*Identity, error) {
	if e.Kind == IdentityDID {
		return NewDIDIdentity(e.DID, e.SigningPriv, e.ExchangePriv)
	}
	pub, err := curve25519.X25519(e.ExchangePriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("id: deriving x25519 exchange key: %w", err)
	}
	var exchPub [32]byte
	copy(exchPub[:], pub)
	return &Identity{
		kind: IdentityEd25519,
		ed25519Priv: append(ed25519.PrivateKey(nil), e.SigningPriv...),
		exchPriv: e.ExchangePriv,
		exchPub: exchPub,
	}, nil
}

// Signature tags occupy their own small space, separate from
// IdentifierKind's tag space (which reserves 1 for Psk): u8(0) selects
// the Ed25519 path, u8(1) the DID path.
const (
	signTagEd25519 = 0
	signTagDID = 1
)

// Sign writes the tagged signature for this identity onto ctx: tag byte
// 0 and a raw Ed25519 signature for an Ed25519 identity, or
// tag byte 1 and the DID path for a DID identity.
func (i *Identity) Sign(ctx *ddml.WrapContext) error {
	switch i.kind {
	case IdentityDID:
		if err := ctx.AbsorbUint8(signTagDID); err != nil {
			return err
		}
		if err := ctx.AbsorbVar([]byte(i.did.SigningFragment)); err != nil {
			return err
		}
		return ctx.SignEd25519(i.ed25519Priv)
	default:
		if err := ctx.AbsorbUint8(signTagEd25519); err != nil {
			return err
		}
		return ctx.SignEd25519(i.ed25519Priv)
	}
}

// SizeofSign returns the on-wire width Sign would occupy for this
// identity: one tag byte, the DID signing fragment when present, and a
// trailing Ed25519 signature.
func (i *Identity) SizeofSign() int {
	n := 1 + ddml.SignatureSize
	if i.kind == IdentityDID {
		n += ddml.SizeOfSize(uint64(len(i.did.SigningFragment))) + len(i.did.SigningFragment)
	}
	return n
}
