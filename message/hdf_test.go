package message

import (
	"testing"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// noLinked is the resolver passed to UnwrapHDF by tests whose HDF never
// sets LinkedMsgID; it must never actually be invoked.
func noLinked(MsgID) (*spongos.Spongos, bool) {
	return nil, false
}

func testHDF(t *testing.T) HDF {
	t.Helper()
	ident, err := id.NewEd25519Identity([]byte("hdf-test-seed"))
	if err != nil {
		t.Fatal(err)
	}
	var topic TopicHash
	copy(topic[:], []byte("0123456789abcdef"))
	return NewHDF(TypeSignedPacket, topic, ident.Identifier(), 7)
}

func TestHDFWrapUnwrapRoundTrip(t *testing.T) {
	h := testHDF(t)

	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, nil); err != nil {
		t.Fatal(err)
	}

	u := ddml.NewUnwrapContext(w.Bytes())
	got, err := UnwrapHDF(u, noLinked)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != h.Version || got.MessageType != h.MessageType || got.Sequence != h.Sequence {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
	if got.TopicHash != h.TopicHash {
		t.Fatalf("topic hash mismatch: got %x want %x", got.TopicHash, h.TopicHash)
	}
	if !got.Publisher.Equal(h.Publisher) {
		t.Fatalf("publisher identifier mismatch")
	}
}

func TestHDFRejectsReservedBitsInTypeAndLength(t *testing.T) {
	h := testHDF(t)
	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, nil); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[2] |= 0x04 // flip a reserved bit in the type/length byte

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapHDF(u, noLinked); err != ErrMalformedHeader {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestHDFRejectsReservedBitsInFrameCount(t *testing.T) {
	h := testHDF(t)
	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, nil); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[5] |= 0xc0 // flip the reserved high bits of the frame-count byte

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapHDF(u, noLinked); err != ErrMalformedHeader {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestHDFRejectsVersionMismatch(t *testing.T) {
	h := testHDF(t)
	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, nil); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[1] = 2 // only Version1 is accepted

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapHDF(u, noLinked); err != ErrMalformedHeader {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestHDFRejectsBadFrameMarker(t *testing.T) {
	h := testHDF(t)
	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, nil); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[4] = 0x00 // not FrameTypeHDF

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapHDF(u, noLinked); err != ErrMalformedHeader {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestHDFTamperAfterMACInvalidatesCheckpoint(t *testing.T) {
	h := testHDF(t)
	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, nil); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[len(raw)-1] ^= 0xff // corrupt a MAC byte directly

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapHDF(u, noLinked); err != ErrMacMismatch {
		t.Fatalf("expected ErrMacMismatch, got %v", err)
	}
}

func TestHDFLinkedHeaderKeyedByBranchState(t *testing.T) {
	h := testHDF(t)
	linked := MsgID{0x42}
	h.LinkedMsgID = &linked

	branchState := spongos.New()
	branchState.Absorb([]byte("branch tip state"))
	branchState.Commit()

	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, branchState.Fork()); err != nil {
		t.Fatal(err)
	}

	resolve := func(id MsgID) (*spongos.Spongos, bool) {
		if id != linked {
			return nil, false
		}
		return branchState, true
	}
	u := ddml.NewUnwrapContext(w.Bytes())
	got, err := UnwrapHDF(u, resolve)
	if err != nil {
		t.Fatal(err)
	}
	if got.LinkedMsgID == nil || *got.LinkedMsgID != linked {
		t.Fatalf("linked msg id mismatch: got %+v", got.LinkedMsgID)
	}
	if got.TopicHash != h.TopicHash || !got.Publisher.Equal(h.Publisher) {
		t.Fatalf("keyed round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestHDFUnwrapFailsClosedWithoutLinkedState(t *testing.T) {
	h := testHDF(t)
	linked := MsgID{0x42}
	h.LinkedMsgID = &linked

	branchState := spongos.New()
	w := ddml.NewWrapContext()
	if err := WrapHDF(w, h, branchState.Fork()); err != nil {
		t.Fatal(err)
	}

	u := ddml.NewUnwrapContext(w.Bytes())
	if _, err := UnwrapHDF(u, noLinked); err != ErrLinkedSpongosUnavailable {
		t.Fatalf("expected ErrLinkedSpongosUnavailable, got %v", err)
	}
}

func TestHDFDifferentLinkedStateChangesMAC(t *testing.T) {
	h := testHDF(t)
	linked := MsgID{0x42}
	h.LinkedMsgID = &linked

	stateA := spongos.New()
	stateA.Absorb([]byte("state a"))
	stateA.Commit()

	stateB := spongos.New()
	stateB.Absorb([]byte("state b"))
	stateB.Commit()

	wa := ddml.NewWrapContext()
	if err := WrapHDF(wa, h, stateA.Fork()); err != nil {
		t.Fatal(err)
	}
	wb := ddml.NewWrapContext()
	if err := WrapHDF(wb, h, stateB.Fork()); err != nil {
		t.Fatal(err)
	}
	if string(wa.Bytes()) == string(wb.Bytes()) {
		t.Fatalf("headers keyed from different branch states must not produce identical wire bytes")
	}

	// Unwrapping wa's bytes while resolving to stateB's (forked, unmutated)
	// state must fail the MAC: the header is keyed to whichever spongos it
	// was actually wrapped against.
	resolveB := func(id MsgID) (*spongos.Spongos, bool) { return stateB, true }
	u := ddml.NewUnwrapContext(wa.Bytes())
	if _, err := UnwrapHDF(u, resolveB); err != ErrMacMismatch {
		t.Fatalf("expected ErrMacMismatch unwrapping against the wrong branch state, got %v", err)
	}
}

func TestPCFHeaderRoundTrip(t *testing.T) {
	h := NewPCFHeader()
	w := ddml.NewWrapContext()
	if err := WrapPCFHeader(w, h); err != nil {
		t.Fatal(err)
	}
	u := ddml.NewUnwrapContext(w.Bytes())
	got, err := UnwrapPCFHeader(u)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestPCFHeaderRejectsReservedBits(t *testing.T) {
	h := NewPCFHeader()
	w := ddml.NewWrapContext()
	if err := WrapPCFHeader(w, h); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[1] |= 0xc0

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapPCFHeader(u); err != ErrMalformedHeader {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestPCFHeaderRejectsZeroFrameNum(t *testing.T) {
	h := PCFHeader{FrameType: FrameTypeFinal, FrameNum: 0}
	w := ddml.NewWrapContext()
	if err := WrapPCFHeader(w, h); err != nil {
		t.Fatal(err)
	}
	u := ddml.NewUnwrapContext(w.Bytes())
	if _, err := UnwrapPCFHeader(u); err != ErrMalformedHeader {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}
