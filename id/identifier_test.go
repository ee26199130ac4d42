package id

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/opd-ai/weave/ddml"
)

func TestIdentifierEqualityIsByteEquality(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	a := NewEd25519Identifier(pub)
	b := NewEd25519Identifier(pub)
	if !a.Equal(b) {
		t.Fatalf("two identifiers over the same public key must be equal")
	}

	pskA := NewPSKIdentifier([PSKIDSize]byte{1, 2, 3})
	pskB := NewPSKIdentifier([PSKIDSize]byte{1, 2, 3})
	if !pskA.Equal(pskB) {
		t.Fatalf("two psk identifiers with the same id must be equal")
	}
	if a.Equal(pskA) {
		t.Fatalf("identifiers of different kinds must not be equal")
	}
}

func TestIdentifierUsableAsMapKey(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	m := map[Identifier]int{}
	m[NewEd25519Identifier(pub)] = 1
	m[NewPSKIdentifier([PSKIDSize]byte{9})] = 2
	if len(m) != 2 {
		t.Fatalf("expected two distinct map entries, got %d", len(m))
	}
}

func TestIdentifierMaskRoundTrip(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	orig := NewEd25519Identifier(pub)

	w := ddml.NewWrapContext()
	if err := orig.WrapTagged(w); err != nil {
		t.Fatal(err)
	}

	u := ddml.NewUnwrapContext(w.Bytes())
	got, err := UnwrapTagged(u)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(orig) {
		t.Fatalf("round trip changed identifier")
	}
}

func TestIdentifierAbsorbRoundTrip(t *testing.T) {
	orig := NewPSKIdentifier([PSKIDSize]byte{5, 6, 7, 8})

	w := ddml.NewWrapContext()
	if err := orig.AbsorbTagged(w); err != nil {
		t.Fatal(err)
	}

	u := ddml.NewUnwrapContext(w.Bytes())
	got, err := UnabsorbTagged(u)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(orig) {
		t.Fatalf("round trip changed identifier")
	}
}

func TestIdentifierBytesDistinguishesKinds(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	a := NewEd25519Identifier(pub)
	b := NewDIDIdentifier("did:example:123")
	if bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("distinct identifier kinds must not share a byte encoding")
	}
}
