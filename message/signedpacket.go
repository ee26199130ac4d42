package message

import (
	"context"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// SignedPacketContent carries a publisher-authenticated payload split
// into a public (unencrypted) part and a masked (encrypted) part:
// join(prev_state); absorb(public_payload); mask(masked_payload);
// sign(publisher); commit. Requires ReadWrite or Admin permission on the
// branch - enforced by the caller before wrapping, since the content
// processor itself has no notion of permissions.
type SignedPacketContent struct {
	PublicPayload []byte
	MaskedPayload []byte
}

// WrapSignedPacket joins ctx's spongos to prevState (the branch's
// current link) before absorbing the public payload, masking the
// payload meant only for key holders, and signing with publisher.
func WrapSignedPacket(ctx *ddml.WrapContext, prevState *spongos.Spongos, publisher *id.Identity, publicPayload, maskedPayload []byte) error {
	if err := ctx.Join(prevState); err != nil {
		return err
	}
	if err := ctx.AbsorbVar(publicPayload); err != nil {
		return err
	}
	if err := ctx.MaskVar(maskedPayload); err != nil {
		return err
	}
	if err := publisher.Sign(ctx); err != nil {
		return err
	}
	return ctx.Commit()
}

// SizeofSignedPacket returns the on-wire width
// WrapSignedPacket(publisher, publicPayload, maskedPayload) would occupy.
func SizeofSignedPacket(publisher *id.Identity, publicPayload, maskedPayload []byte) int {
	n := ddml.SizeOfSize(uint64(len(publicPayload))) + len(publicPayload)
	n += ddml.SizeOfSize(uint64(len(maskedPayload))) + len(maskedPayload)
	n += publisher.SizeofSign()
	return n
}

// UnwrapSignedPacket mirrors WrapSignedPacket, verifying the signature
// against publisherIdentifier (the publisher recorded in the enclosing
// HDF).
func UnwrapSignedPacket(ctx context.Context, uctx *ddml.UnwrapContext, prevState *spongos.Spongos, publisherIdentifier id.Identifier, resolver id.DIDResolver) (SignedPacketContent, error) {
	if err := uctx.Join(prevState); err != nil {
		return SignedPacketContent{}, err
	}
	publicPayload, err := uctx.AbsorbVar()
	if err != nil {
		return SignedPacketContent{}, err
	}
	maskedPayload, err := uctx.MaskVar()
	if err != nil {
		return SignedPacketContent{}, err
	}
	if err := id.Verify(ctx, uctx, publisherIdentifier, resolver); err != nil {
		return SignedPacketContent{}, toSignatureError(err)
	}
	content := SignedPacketContent{PublicPayload: publicPayload, MaskedPayload: maskedPayload}
	return content, uctx.Commit()
}
