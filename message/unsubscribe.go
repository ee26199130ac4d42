package message

import (
	"context"
	"crypto/subtle"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// UnsubscribeContent carries the capability proving the sender was the
// original subscriber: join(subscribe_state); absorb the
// unsubscribe_key; sign(subscriber).
type UnsubscribeContent struct {
	UnsubscribeKey [UnsubscribeKeySize]byte
}

// WrapUnsubscribe absorbs unsubscribeKey (the capability minted by
// Subscribe) and signs with subscriber.
func WrapUnsubscribe(ctx *ddml.WrapContext, subscribeState *spongos.Spongos, subscriber *id.Identity, unsubscribeKey [UnsubscribeKeySize]byte) error {
	if err := ctx.Join(subscribeState); err != nil {
		return err
	}
	if err := ctx.AbsorbFixed(unsubscribeKey[:]); err != nil {
		return err
	}
	if err := subscriber.Sign(ctx); err != nil {
		return err
	}
	return ctx.Commit()
}

// SizeofUnsubscribe returns the on-wire width
// WrapUnsubscribe(subscriber, unsubscribeKey) would occupy.
func SizeofUnsubscribe(subscriber *id.Identity) int {
	return UnsubscribeKeySize + subscriber.SizeofSign()
}

// UnwrapUnsubscribe parses the message and checks that its capability
// matches expectedKey, the unsubscribe_key the author stored when it
// processed the original Subscribe. subscriberIdentifier is the
// publisher recorded against that original subscription.
func UnwrapUnsubscribe(ctx context.Context, uctx *ddml.UnwrapContext, subscribeState *spongos.Spongos, subscriberIdentifier id.Identifier, expectedKey [UnsubscribeKeySize]byte, resolver id.DIDResolver) (UnsubscribeContent, error) {
	if err := uctx.Join(subscribeState); err != nil {
		return UnsubscribeContent{}, err
	}
	keyBytes, err := uctx.AbsorbFixed(UnsubscribeKeySize)
	if err != nil {
		return UnsubscribeContent{}, err
	}
	if err := id.Verify(ctx, uctx, subscriberIdentifier, resolver); err != nil {
		return UnsubscribeContent{}, toSignatureError(err)
	}
	if subtle.ConstantTimeCompare(keyBytes, expectedKey[:]) != 1 {
		return UnsubscribeContent{}, ErrKeyNotFound
	}

	var content UnsubscribeContent
	copy(content.UnsubscribeKey[:], keyBytes)
	return content, uctx.Commit()
}
