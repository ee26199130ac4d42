package message

import "github.com/opd-ai/weave/ddml"

// PCF frame types.
const (
	FrameTypeInit uint8 = 0x01
	FrameTypeInter uint8 = 0x02
	FrameTypeFinal uint8 = 0x03
)

// PCFHeader is the payload-carrying frame's leading fields. This core
// only ever produces single-frame FINAL messages; INIT/INTER exist for
// forward compatibility with sharded payloads that no in-scope
// component generates.
type PCFHeader struct {
	FrameType uint8
	FrameNum uint32 // 22 bits, >= 1
}

// NewPCFHeader returns the single-frame FINAL header this core always
// produces.
func NewPCFHeader() PCFHeader {
	return PCFHeader{FrameType: FrameTypeFinal, FrameNum: 1}
}

// WrapPCFHeader absorbs the frame_type and packed reserved/frame_num
// fields onto ctx's spongos. The send and receive paths call it on a
// fresh content context; the header's spongos is joined in afterwards
// by the content processor.
func WrapPCFHeader(ctx *ddml.WrapContext, h PCFHeader) error {
	if err := ctx.AbsorbUint8(h.FrameType); err != nil {
		return err
	}
	hi := uint8((h.FrameNum >> 16) & 0x3f)
	mid := uint8((h.FrameNum >> 8) & 0xff)
	lo := uint8(h.FrameNum & 0xff)
	if err := ctx.AbsorbUint8(hi); err != nil {
		return err
	}
	if err := ctx.AbsorbUint8(mid); err != nil {
		return err
	}
	return ctx.AbsorbUint8(lo)
}

// SizeofPCFHeader returns PCFHeader's on-wire width: always 4 bytes
// regardless of field values.
func SizeofPCFHeader() int {
	return 4
}

// UnwrapPCFHeader parses the fields WrapPCFHeader wrote, rejecting a
// non-zero reserved prefix or a frame_num of zero.
func UnwrapPCFHeader(ctx *ddml.UnwrapContext) (PCFHeader, error) {
	var h PCFHeader
	var err error

	h.FrameType, err = ctx.AbsorbUint8()
	if err != nil {
		return PCFHeader{}, err
	}
	switch h.FrameType {
	case FrameTypeInit, FrameTypeInter, FrameTypeFinal:
	default:
		return PCFHeader{}, ErrMalformedHeader
	}

	hi, err := ctx.AbsorbUint8()
	if err != nil {
		return PCFHeader{}, err
	}
	if hi&0xc0 != 0 {
		return PCFHeader{}, ErrMalformedHeader
	}
	mid, err := ctx.AbsorbUint8()
	if err != nil {
		return PCFHeader{}, err
	}
	lo, err := ctx.AbsorbUint8()
	if err != nil {
		return PCFHeader{}, err
	}
	h.FrameNum = uint32(hi)<<16 | uint32(mid)<<8 | uint32(lo)
	if h.FrameNum == 0 {
		return PCFHeader{}, ErrMalformedHeader
	}
	return h, nil
}
