package message

import (
	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// MessageType tags which content processor a message carries, packed
// into HDF's 4-bit message_type field.
type MessageType uint8

const (
	TypeAnnounce MessageType = iota
	TypeBranchAnnounce
	TypeSubscribe
	TypeUnsubscribe
	TypeKeyload
	TypeSignedPacket
	TypeTaggedPacket
)

const (
	// EncodingUTF8 is the default HDF encoding tag.
	EncodingUTF8 uint8 = 0x01
	// Version1 is the only HDF version this core emits or accepts.
	Version1 uint8 = 1
	// FrameTypeHDF is the fixed marker identifying a header frame:
	// frame_type 0x7F.
	FrameTypeHDF uint8 = 0x7F

	hdfMacSize = 32
)

// HDF is the message header frame.
type HDF struct {
	Encoding uint8
	Version uint8
	MessageType MessageType
	PayloadLength uint16 // 10 bits
	PayloadFrameCount uint32 // 22 bits
	LinkedMsgID *MsgID
	TopicHash TopicHash
	Publisher id.Identifier
	Sequence uint64
}

// NewHDF builds a header with the default encoding/version/frame marker.
func NewHDF(msgType MessageType, topicHash TopicHash, publisher id.Identifier, sequence uint64) HDF {
	return HDF{
		Encoding: EncodingUTF8,
		Version: Version1,
		MessageType: msgType,
		TopicHash: topicHash,
		Publisher: publisher,
		Sequence: sequence,
	}
}

// WrapHDF serializes h onto ctx. Fields up to and including
// LinkedMsgID are absorbed on whatever state ctx already carries; once
// LinkedMsgID is known, linked (the branch tip this header points at,
// nil for an Announce with nothing to link to) is joined into ctx's
// spongos before topic_hash and publisher are masked rather than
// absorbed, so the trailing 32-byte MAC is keyed off the branch state
// and not a public hash of the header bytes alone. Tampering with any
// field upstream of the MAC invalidates it, and every downstream
// squeeze performed by the content processor that continues on this
// same keyed state - the header is bound to the payload that follows
// it, not concatenated alongside it.
func WrapHDF(ctx *ddml.WrapContext, h HDF, linked *spongos.Spongos) error {
	if err := ctx.AbsorbUint8(h.Encoding); err != nil {
		return err
	}
	if err := ctx.AbsorbUint8(h.Version); err != nil {
		return err
	}

	typeAndLenHi := (uint8(h.MessageType)<<4)&0xf0 | uint8((h.PayloadLength>>8)&0x03)
	lenLo := uint8(h.PayloadLength & 0xff)
	if err := ctx.AbsorbUint8(typeAndLenHi); err != nil {
		return err
	}
	if err := ctx.AbsorbUint8(lenLo); err != nil {
		return err
	}

	if err := ctx.AbsorbUint8(FrameTypeHDF); err != nil {
		return err
	}

	frameCountHi := uint8((h.PayloadFrameCount >> 16) & 0x3f)
	frameCountMid := uint8((h.PayloadFrameCount >> 8) & 0xff)
	frameCountLo := uint8(h.PayloadFrameCount & 0xff)
	if err := ctx.AbsorbUint8(frameCountHi); err != nil {
		return err
	}
	if err := ctx.AbsorbUint8(frameCountMid); err != nil {
		return err
	}
	if err := ctx.AbsorbUint8(frameCountLo); err != nil {
		return err
	}

	if h.LinkedMsgID != nil {
		if err := ctx.AbsorbUint8(1); err != nil {
			return err
		}
		if err := ctx.AbsorbFixed(h.LinkedMsgID[:]); err != nil {
			return err
		}
	} else {
		if err := ctx.AbsorbUint8(0); err != nil {
			return err
		}
	}

	if linked != nil {
		if err := ctx.Join(linked); err != nil {
			return err
		}
	}

	if err := ctx.MaskFixed(h.TopicHash[:]); err != nil {
		return err
	}
	if err := h.Publisher.WrapTagged(ctx); err != nil {
		return err
	}
	if err := ctx.AbsorbSize(h.Sequence); err != nil {
		return err
	}

	_, err := ctx.Squeeze(hdfMacSize)
	return err
}

// SizeofHDF returns the on-wire width WrapHDF(h, ...) would occupy. The
// linked spongos fed into Join never changes a field's width, only the
// spongos state that keys the bytes written for it, so SizeofHDF needs
// no counterpart to WrapHDF's linked argument - h.LinkedMsgID's
// presence already decides whether MsgIDSize is counted.
func SizeofHDF(h HDF) int {
	n := 8 // encoding, version, type/len hi+lo, frame marker, frame_count x3
	n++ // has-linked flag
	if h.LinkedMsgID != nil {
		n += MsgIDSize
	}
	n += TopicHashSize
	n += h.Publisher.SizeofTagged()
	n += ddml.SizeOfSize(h.Sequence)
	n += hdfMacSize
	return n
}

// UnwrapHDF parses and validates a header from ctx, rejecting any
// non-zero reserved bits, version mismatch, or bad frame-type marker
// without committing further state. Once LinkedMsgID is parsed,
// resolveLinked (nil-safe, only consulted when LinkedMsgID is present)
// looks up the cached spongos for that address and joins it into ctx
// before topic_hash/publisher are unmasked, mirroring WrapHDF's keying -
// a present LinkedMsgID with no resolvable spongos fails closed with
// ErrLinkedSpongosUnavailable rather than falling back to an unkeyed
// unmask.
func UnwrapHDF(ctx *ddml.UnwrapContext, resolveLinked func(MsgID) (*spongos.Spongos, bool)) (HDF, error) {
	var h HDF
	var err error

	h.Encoding, err = ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}

	h.Version, err = ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	if h.Version != Version1 {
		return HDF{}, ErrMalformedHeader
	}

	typeAndLenHi, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	if typeAndLenHi&0x0c != 0 {
		return HDF{}, ErrMalformedHeader
	}
	h.MessageType = MessageType(typeAndLenHi >> 4)
	lenHi := typeAndLenHi & 0x03

	lenLo, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	h.PayloadLength = uint16(lenHi)<<8 | uint16(lenLo)

	frameMarker, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	if frameMarker != FrameTypeHDF {
		return HDF{}, ErrMalformedHeader
	}

	frameCountHi, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	if frameCountHi&0xc0 != 0 {
		return HDF{}, ErrMalformedHeader
	}
	frameCountMid, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	frameCountLo, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	h.PayloadFrameCount = uint32(frameCountHi)<<16 | uint32(frameCountMid)<<8 | uint32(frameCountLo)

	hasLinked, err := ctx.AbsorbUint8()
	if err != nil {
		return HDF{}, err
	}
	switch hasLinked {
	case 0:
		h.LinkedMsgID = nil
	case 1:
		raw, err := ctx.AbsorbFixed(MsgIDSize)
		if err != nil {
			return HDF{}, err
		}
		var linked MsgID
		copy(linked[:], raw)
		h.LinkedMsgID = &linked
	default:
		return HDF{}, ErrMalformedHeader
	}

	if h.LinkedMsgID != nil {
		linked, ok := resolveLinked(*h.LinkedMsgID)
		if !ok {
			return HDF{}, ErrLinkedSpongosUnavailable
		}
		// Join consumes (commits, zeroes, permutes) whatever spongos it is
		// given - fork the cached state rather than handing over the
		// cache's own copy.
		if err := ctx.Join(linked.Fork()); err != nil {
			return HDF{}, err
		}
	}

	topicBytes, err := ctx.MaskFixed(TopicHashSize)
	if err != nil {
		return HDF{}, err
	}
	copy(h.TopicHash[:], topicBytes)

	h.Publisher, err = id.UnwrapTagged(ctx)
	if err != nil {
		return HDF{}, err
	}

	h.Sequence, err = ctx.AbsorbSize()
	if err != nil {
		return HDF{}, err
	}

	if err := ctx.Squeeze(hdfMacSize); err != nil {
		if err == ddml.ErrMacMismatch {
			return HDF{}, ErrMacMismatch
		}
		return HDF{}, err
	}

	return h, nil
}
