package message

import (
	"context"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// UnsubscribeKeySize is the width of the capability a subscriber later
// proves to revoke its own subscription.
const UnsubscribeKeySize = 32

// SubscribeContent is a subscription request linked to the stream's
// announce message: join(announce_state);
// x25519(author_ke_pk, unsubscribe_key); mask(subscriber_identifier);
// sign(subscriber); commit.
type SubscribeContent struct {
	SubscriberIdentifier id.Identifier
	UnsubscribeKey [UnsubscribeKeySize]byte
}

// WrapSubscribe seals a fresh unsubscribe_key to authorKePub using the
// ephemeral x25519 sealing primitive, masks the subscriber's identifier,
// and signs with subscriber.
func WrapSubscribe(ctx *ddml.WrapContext, announceState *spongos.Spongos, subscriber *id.Identity, authorKePub [32]byte, unsubscribeKey [UnsubscribeKeySize]byte) error {
	if err := ctx.Join(announceState); err != nil {
		return err
	}
	if err := ctx.X25519Seal(authorKePub); err != nil {
		return err
	}
	if err := ctx.MaskFixed(unsubscribeKey[:]); err != nil {
		return err
	}
	if err := subscriber.Identifier().WrapTagged(ctx); err != nil {
		return err
	}
	if err := subscriber.Sign(ctx); err != nil {
		return err
	}
	return ctx.Commit()
}

// SizeofSubscribe returns the on-wire width
// WrapSubscribe(subscriber, ...) would occupy. The x25519 seal and the
// unsubscribe key are both fixed width; only the subscriber's tagged
// identifier and signature vary by identity kind.
func SizeofSubscribe(subscriber *id.Identity) int {
	n := ddml.X25519SealSize
	n += UnsubscribeKeySize
	n += subscriber.Identifier().SizeofTagged()
	n += subscriber.SizeofSign()
	return n
}

// UnwrapSubscribe opens the sealed unsubscribe_key with authorKePriv and
// verifies the subscriber's signature against the identifier carried
// inside the message itself (a subscriber is not yet known to the
// author before this message is parsed).
func UnwrapSubscribe(ctx context.Context, uctx *ddml.UnwrapContext, announceState *spongos.Spongos, authorKePriv [32]byte, resolver id.DIDResolver) (SubscribeContent, error) {
	if err := uctx.Join(announceState); err != nil {
		return SubscribeContent{}, err
	}
	if err := uctx.X25519Open(authorKePriv); err != nil {
		return SubscribeContent{}, err
	}
	keyBytes, err := uctx.MaskFixed(UnsubscribeKeySize)
	if err != nil {
		return SubscribeContent{}, err
	}
	subscriberIdentifier, err := id.UnwrapTagged(uctx)
	if err != nil {
		return SubscribeContent{}, err
	}
	if err := id.Verify(ctx, uctx, subscriberIdentifier, resolver); err != nil {
		return SubscribeContent{}, toSignatureError(err)
	}

	var content SubscribeContent
	content.SubscriberIdentifier = subscriberIdentifier
	copy(content.UnsubscribeKey[:], keyBytes)
	return content, uctx.Commit()
}
