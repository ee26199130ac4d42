package message

import (
	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/spongos"
)

// taggedMacSize is the width of TaggedPacket's trailing MAC checkpoint.
const taggedMacSize = 32

// TaggedPacketContent is an unsigned, content-key-authenticated payload
//: join(prev_state); absorb(public_payload);
// mask(masked_payload); squeeze(mac); commit. Any holder of the
// branch's content key may publish one - there is no publisher
// signature, only the spongos MAC, so authenticity here means "someone
// who knows the key", not "a specific identity".
type TaggedPacketContent struct {
	PublicPayload []byte
	MaskedPayload []byte
}

// WrapTaggedPacket joins ctx's spongos to prevState, absorbs the public
// payload, masks the key-gated payload, and appends a trailing MAC
// checkpoint in place of a signature.
func WrapTaggedPacket(ctx *ddml.WrapContext, prevState *spongos.Spongos, publicPayload, maskedPayload []byte) error {
	if err := ctx.Join(prevState); err != nil {
		return err
	}
	if err := ctx.AbsorbVar(publicPayload); err != nil {
		return err
	}
	if err := ctx.MaskVar(maskedPayload); err != nil {
		return err
	}
	if _, err := ctx.Squeeze(taggedMacSize); err != nil {
		return err
	}
	return ctx.Commit()
}

// SizeofTaggedPacket returns the on-wire width
// WrapTaggedPacket(publicPayload, maskedPayload) would occupy.
func SizeofTaggedPacket(publicPayload, maskedPayload []byte) int {
	n := ddml.SizeOfSize(uint64(len(publicPayload))) + len(publicPayload)
	n += ddml.SizeOfSize(uint64(len(maskedPayload))) + len(maskedPayload)
	n += taggedMacSize
	return n
}

// UnwrapTaggedPacket mirrors WrapTaggedPacket. There is no identity to
// verify; a successful MAC check only proves the sender held the
// content key this spongos was keyed with.
func UnwrapTaggedPacket(uctx *ddml.UnwrapContext, prevState *spongos.Spongos) (TaggedPacketContent, error) {
	if err := uctx.Join(prevState); err != nil {
		return TaggedPacketContent{}, err
	}
	publicPayload, err := uctx.AbsorbVar()
	if err != nil {
		return TaggedPacketContent{}, err
	}
	maskedPayload, err := uctx.MaskVar()
	if err != nil {
		return TaggedPacketContent{}, err
	}
	if err := uctx.Squeeze(taggedMacSize); err != nil {
		if err == ddml.ErrMacMismatch {
			return TaggedPacketContent{}, ErrMacMismatch
		}
		return TaggedPacketContent{}, err
	}
	content := TaggedPacketContent{PublicPayload: publicPayload, MaskedPayload: maskedPayload}
	return content, uctx.Commit()
}
