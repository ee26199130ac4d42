package message

import (
	"context"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// KeyloadNonceSize is the width of the per-keyload nonce absorbed before
// the recipient list.
const KeyloadNonceSize = 16

// idHashSize is the width of the external hash chaining the recipient
// loop's forked state into the outer signature.
const idHashSize = 64

// KeyloadRecipient is one entry of a keyload's recipient set: either a
// public-key holder (sealed via ephemeral x25519 against ExchangePub) or
// a PSK holder (sealed by absorbing PSKKey as an external value).
// Exactly one of ExchangePub / PSKKey is meaningful, selected by
// Identifier.Kind().
type KeyloadRecipient struct {
	Identifier id.Identifier
	ExchangePub [32]byte
	PSKKey [32]byte
}

// KeyloadContent is the decoded outcome of unwrapping a keyload. Found
// reports whether the unwrapping user held a matching recipient slot;
// when false, ContentKey is the zero value and the
// caller must treat the keyload as a distinct key_not_found condition
// rather than a malformed message.
type KeyloadContent struct {
	Found bool
	ContentKey [32]byte
}

func recipientSlotWidth(kind id.IdentifierKind) int {
	if kind == id.IdentifierPSK {
		return ContentKeySize
	}
	return 32 + ContentKeySize
}

func sealRecipientSlot(r KeyloadRecipient, contentKey [32]byte) ([]byte, error) {
	seal := ddml.NewWrapContext()
	if r.Identifier.Kind() == id.IdentifierPSK {
		if err := seal.AbsorbExternalFixed(r.PSKKey[:]); err != nil {
			return nil, err
		}
		if err := seal.Commit(); err != nil {
			return nil, err
		}
	} else {
		if err := seal.X25519Seal(r.ExchangePub); err != nil {
			return nil, err
		}
	}
	if err := seal.MaskFixed(contentKey[:]); err != nil {
		return nil, err
	}
	return seal.Bytes(), nil
}

// WrapKeyload distributes contentKey to recipients, sealed per the
// identifier kind of each slot, and signs the whole recipient set with
// author. The recipient loop runs on a single fork of the
// branch's spongos: each slot's identifier is masked into that forked
// state, but the sealed content-key bytes are opaque to it (raw wire
// bytes only, produced by a throwaway one-off context per slot) so a
// reader without that slot's key material can still keep the shared
// forked state in lockstep by dropping the same number of bytes.
func WrapKeyload(ctx *ddml.WrapContext, initialState *spongos.Spongos, author *id.Identity, nonce [KeyloadNonceSize]byte, recipients []KeyloadRecipient, contentKey [32]byte) error {
	if err := ctx.Join(initialState); err != nil {
		return err
	}
	if err := ctx.AbsorbFixed(nonce[:]); err != nil {
		return err
	}

	loop := ctx.Fork()
	if err := loop.AbsorbSize(uint64(len(recipients))); err != nil {
		return err
	}
	for _, r := range recipients {
		if err := r.Identifier.WrapTagged(loop); err != nil {
			return err
		}
		sealed, err := sealRecipientSlot(r, contentKey)
		if err != nil {
			return err
		}
		if err := loop.WriteRaw(sealed); err != nil {
			return err
		}
	}
	if err := loop.Commit(); err != nil {
		return err
	}
	idHash, err := loop.SqueezeExternal(idHashSize)
	if err != nil {
		return err
	}
	ctx.MergeFrom(loop)

	if err := ctx.AbsorbExternalFixed(contentKey[:]); err != nil {
		return err
	}

	sig := ctx.Fork()
	if err := sig.AbsorbExternalFixed(idHash); err != nil {
		return err
	}
	if err := sig.Commit(); err != nil {
		return err
	}
	if err := author.Sign(sig); err != nil {
		return err
	}
	ctx.MergeFrom(sig)
	return ctx.Commit()
}

// SizeofKeyload returns the on-wire width WrapKeyload(author, nonce,
// recipients, contentKey) would occupy: the nonce, the recipient-count
// prefix, each recipient's tagged identifier plus its sealed slot, and
// the trailing signature. contentKey never affects the width - it is
// always exactly ContentKeySize regardless of value.
func SizeofKeyload(author *id.Identity, recipients []KeyloadRecipient) int {
	n := KeyloadNonceSize
	n += ddml.SizeOfSize(uint64(len(recipients)))
	for _, r := range recipients {
		n += r.Identifier.SizeofTagged()
		n += recipientSlotWidth(r.Identifier.Kind())
	}
	n += author.SizeofSign()
	return n
}

// openRecipientSlot attempts to open a sealed content key: a PSK slot
// through psks, any other slot only when identifier equals
// localIdentifier. ok is false when the slot is not addressed to this
// user (the caller reads exactly width(identifier.Kind()) bytes via
// ReadRaw before calling, match or not, to stay in lockstep).
func openRecipientSlot(sealed []byte, identifier id.Identifier, localIdentifier id.Identifier, localExchangePriv [32]byte, psks *id.PSKTable) (key [32]byte, ok bool, err error) {
	if identifier.Kind() != id.IdentifierPSK && !identifier.Equal(localIdentifier) {
		return key, false, nil
	}
	open := ddml.NewUnwrapContext(sealed)
	if identifier.Kind() == id.IdentifierPSK {
		psk, found := psks.Get(identifier.PSKID())
		if !found {
			return key, false, nil
		}
		if err := open.AbsorbExternalFixed(psk.Key[:]); err != nil {
			return key, false, err
		}
		if err := open.Commit(); err != nil {
			return key, false, err
		}
	} else {
		if err := open.X25519Open(localExchangePriv); err != nil {
			return key, false, err
		}
	}
	raw, err := open.MaskFixed(ContentKeySize)
	if err != nil {
		return key, false, err
	}
	copy(key[:], raw)
	return key, true, nil
}

// UnwrapKeyload mirrors WrapKeyload. localIdentifier/localExchangePriv
// identify the unwrapping user's own pubkey-based recipient slot, and
// psks resolves PSK-based slots. Signature failure rejects the entire
// message (no key installed, no Commit). Absent a matching slot,
// UnwrapKeyload returns a zero KeyloadContent with Found == false and
// ErrKeyNotFound before the content key is ever absorbed into uctx's
// spongos; the caller may still advance its branch cursor against this
// message, but uctx's returned spongos permanently diverges from a
// recipient's - it was never mixed with the content key - so anything
// later forked from it fails to unwrap.
func UnwrapKeyload(ctx context.Context, uctx *ddml.UnwrapContext, initialState *spongos.Spongos, authorIdentifier id.Identifier, localIdentifier id.Identifier, localExchangePriv [32]byte, psks *id.PSKTable, resolver id.DIDResolver) (KeyloadContent, error) {
	if err := uctx.Join(initialState); err != nil {
		return KeyloadContent{}, err
	}
	if _, err := uctx.AbsorbFixed(KeyloadNonceSize); err != nil {
		return KeyloadContent{}, err
	}

	loop := uctx.Fork()
	n, err := loop.AbsorbSize()
	if err != nil {
		return KeyloadContent{}, err
	}

	var found bool
	var contentKey [32]byte
	for i := uint64(0); i < n; i++ {
		identifier, err := id.UnwrapTagged(loop)
		if err != nil {
			return KeyloadContent{}, err
		}
		width := recipientSlotWidth(identifier.Kind())
		sealed, err := loop.ReadRaw(width)
		if err != nil {
			return KeyloadContent{}, err
		}
		key, ok, err := openRecipientSlot(sealed, identifier, localIdentifier, localExchangePriv, psks)
		if err != nil {
			return KeyloadContent{}, err
		}
		if ok {
			found = true
			contentKey = key
		}
	}
	if err := loop.Commit(); err != nil {
		return KeyloadContent{}, err
	}
	idHash, err := loop.SqueezeExternal(idHashSize)
	if err != nil {
		return KeyloadContent{}, err
	}
	uctx.AdvanceFrom(loop)

	if !found {
		// No slot in this keyload matches the unwrapping user: the
		// signature cannot be checked (it is computed over a hash that
		// depends on the content key), and none needs to be - this
		// reader has nothing to verify access to. The branch cursor
		// still advances at the caller's level.
		return KeyloadContent{}, ErrKeyNotFound
	}

	if err := uctx.AbsorbExternalFixed(contentKey[:]); err != nil {
		return KeyloadContent{}, err
	}

	sig := uctx.Fork()
	if err := sig.AbsorbExternalFixed(idHash); err != nil {
		return KeyloadContent{}, err
	}
	if err := sig.Commit(); err != nil {
		return KeyloadContent{}, err
	}
	if err := id.Verify(ctx, sig, authorIdentifier, resolver); err != nil {
		return KeyloadContent{}, toSignatureError(err)
	}
	uctx.AdvanceFrom(sig)

	if err := uctx.Commit(); err != nil {
		return KeyloadContent{}, err
	}
	return KeyloadContent{Found: true, ContentKey: contentKey}, nil
}
