package message

import (
	"bytes"
	"context"
	"testing"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
)

func TestSignedPacketWrapUnwrapRoundTrip(t *testing.T) {
	publisher, err := id.NewEd25519Identity([]byte("signed-packet-seed"))
	if err != nil {
		t.Fatal(err)
	}
	prevState := ddml.NewWrapContext().Spongos()

	w := ddml.NewWrapContext()
	if err := WrapSignedPacket(w, prevState, publisher, []byte("public"), []byte("masked")); err != nil {
		t.Fatal(err)
	}

	unwrapPrevState := ddml.NewWrapContext().Spongos()
	u := ddml.NewUnwrapContext(w.Bytes())
	content, err := UnwrapSignedPacket(context.Background(), u, unwrapPrevState, publisher.Identifier(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content.PublicPayload, []byte("public")) {
		t.Fatalf("public payload mismatch: %q", content.PublicPayload)
	}
	if !bytes.Equal(content.MaskedPayload, []byte("masked")) {
		t.Fatalf("masked payload mismatch: %q", content.MaskedPayload)
	}
}

func TestSizeofSignedPacketMatchesWrap(t *testing.T) {
	publisher, err := id.NewEd25519Identity([]byte("sizeof-signed-packet-seed"))
	if err != nil {
		t.Fatal(err)
	}
	prevState := ddml.NewWrapContext().Spongos()
	w := ddml.NewWrapContext()
	public, masked := []byte("public payload"), []byte("masked payload, a bit longer")
	if err := WrapSignedPacket(w, prevState, publisher, public, masked); err != nil {
		t.Fatal(err)
	}
	if got, want := SizeofSignedPacket(publisher, public, masked), len(w.Bytes()); got != want {
		t.Fatalf("SizeofSignedPacket = %d, actual wrap produced %d bytes", got, want)
	}
}

func TestSignedPacketRejectsTamperedSignature(t *testing.T) {
	publisher, err := id.NewEd25519Identity([]byte("signed-packet-tamper-seed"))
	if err != nil {
		t.Fatal(err)
	}
	prevState := ddml.NewWrapContext().Spongos()

	w := ddml.NewWrapContext()
	if err := WrapSignedPacket(w, prevState, publisher, []byte("public"), []byte("masked")); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[len(raw)-1] ^= 0xff

	unwrapPrevState := ddml.NewWrapContext().Spongos()
	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapSignedPacket(context.Background(), u, unwrapPrevState, publisher.Identifier(), nil); err != ErrSignatureMismatch {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestTaggedPacketWrapUnwrapRoundTrip(t *testing.T) {
	prevState := ddml.NewWrapContext().Spongos()

	w := ddml.NewWrapContext()
	if err := WrapTaggedPacket(w, prevState, []byte("public"), []byte("masked")); err != nil {
		t.Fatal(err)
	}

	unwrapPrevState := ddml.NewWrapContext().Spongos()
	u := ddml.NewUnwrapContext(w.Bytes())
	content, err := UnwrapTaggedPacket(u, unwrapPrevState)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content.PublicPayload, []byte("public")) {
		t.Fatalf("public payload mismatch: %q", content.PublicPayload)
	}
	if !bytes.Equal(content.MaskedPayload, []byte("masked")) {
		t.Fatalf("masked payload mismatch: %q", content.MaskedPayload)
	}
}

func TestSizeofTaggedPacketMatchesWrap(t *testing.T) {
	prevState := ddml.NewWrapContext().Spongos()
	w := ddml.NewWrapContext()
	public, masked := []byte("public payload"), []byte("masked payload, a bit longer")
	if err := WrapTaggedPacket(w, prevState, public, masked); err != nil {
		t.Fatal(err)
	}
	if got, want := SizeofTaggedPacket(public, masked), len(w.Bytes()); got != want {
		t.Fatalf("SizeofTaggedPacket = %d, actual wrap produced %d bytes", got, want)
	}
}

func TestTaggedPacketRejectsTamperedMAC(t *testing.T) {
	prevState := ddml.NewWrapContext().Spongos()

	w := ddml.NewWrapContext()
	if err := WrapTaggedPacket(w, prevState, []byte("public"), []byte("masked")); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[len(raw)-1] ^= 0xff

	unwrapPrevState := ddml.NewWrapContext().Spongos()
	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapTaggedPacket(u, unwrapPrevState); err != ErrMacMismatch {
		t.Fatalf("expected ErrMacMismatch, got %v", err)
	}
}
