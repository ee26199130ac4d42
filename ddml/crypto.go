package ddml

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// SignatureSize is the width of an Ed25519 signature on the wire.
const SignatureSize = ed25519.SignatureSize

// ExternalHashSize is the width of the squeezed hash that sign/verify
// operate over.
const ExternalHashSize = 64

// ContentKeySize is the width of a keyload content key.
const ContentKeySize = 32

// X25519SealSize is the on-wire width of X25519Seal/X25519Open: the
// ephemeral public key. The ECDH shared secret it derives is absorbed
// externally and never appears on the wire.
const X25519SealSize = 32

func clampX25519(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// X25519Seal runs the "x25519(recipient_pk,...)" command used by
// keyload and Subscribe: it generates a fresh ephemeral x25519
// keypair, derives the ECDH shared secret with remotePub, writes the
// ephemeral public key onto the wire, and mixes the shared secret into
// the spongos as an external value. Subsequent Mask calls on the same
// context encrypt through a spongos now keyed by that secret, so the
// caller follows X25519Seal with an ordinary MaskFixed/MaskVar of the
// payload being sealed.
func (c *WrapContext) X25519Seal(remotePub [32]byte) error {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return err
	}
	clampX25519(&ephPriv)
	ephPubSlice, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return err
	}
	var ephPub [32]byte
	copy(ephPub[:], ephPubSlice)

	shared, err := curve25519.X25519(ephPriv[:], remotePub[:])
	if err != nil {
		return err
	}

	if err := c.AbsorbFixed(ephPub[:]); err != nil {
		return err
	}
	return c.AbsorbExternalFixed(shared)
}

// X25519Open is the unwrap-side counterpart of X25519Seal: it reads the
// ephemeral public key off the wire, derives the same ECDH shared secret
// using localPriv, and mixes it into the spongos the same way. The
// caller follows it with an ordinary MaskFixed/MaskVar to recover the
// sealed payload.
func (c *UnwrapContext) X25519Open(localPriv [32]byte) error {
	ephPub, err := c.AbsorbFixed(32)
	if err != nil {
		return err
	}
	shared, err := curve25519.X25519(localPriv[:], ephPub)
	if err != nil {
		return err
	}
	return c.AbsorbExternalFixed(shared)
}

// SignEd25519 squeezes an external hash from the wrap context's spongos
// and signs it, writing the raw signature to the wire without absorbing
// it (the verifier recomputes the same hash independently).
func (c *WrapContext) SignEd25519(priv ed25519.PrivateKey) error {
	hash, err := c.SqueezeExternal(ExternalHashSize)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, hash)
	return c.WriteRaw(sig)
}

// VerifyEd25519 squeezes the same external hash on the unwrap side,
// reads the raw signature off the wire, and verifies it.
func (c *UnwrapContext) VerifyEd25519(pub ed25519.PublicKey) error {
	hash, err := c.SqueezeExternal(ExternalHashSize)
	if err != nil {
		return err
	}
	sig, err := c.ReadRaw(SignatureSize)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, hash, sig) {
		return ErrSignatureMismatch
	}
	return nil
}
