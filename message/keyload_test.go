package message

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
)

// TestKeyloadRestrictsAccess: an author keyloads a packet's content key
// to one pubkey recipient and one PSK, a second pubkey holder is left
// out and must observe ErrKeyNotFound.
func TestKeyloadRestrictsAccess(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("keyload-author-seed"))
	if err != nil {
		t.Fatal(err)
	}
	subA, err := id.NewEd25519Identity([]byte("subA"))
	if err != nil {
		t.Fatal(err)
	}
	subB, err := id.NewEd25519Identity([]byte("subB"))
	if err != nil {
		t.Fatal(err)
	}
	var pskKey [id.PSKSize]byte
	copy(pskKey[:], []byte("psk-seed-psk-seed-psk-seed-0123"))
	psk := id.NewPSK(pskKey)

	branchState := ddml.NewWrapContext().Spongos()

	var nonce [KeyloadNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		t.Fatal(err)
	}
	var contentKey [32]byte
	if _, err := rand.Read(contentKey[:]); err != nil {
		t.Fatal(err)
	}

	_, subAPub := subA.ExchangeKeyPair()
	recipients := []KeyloadRecipient{
		{Identifier: subA.Identifier(), ExchangePub: subAPub},
		{Identifier: id.NewPSKIdentifier(psk.ID), PSKKey: psk.Key},
	}

	kw := ddml.NewWrapContext()
	if err := WrapKeyload(kw, branchState, author, nonce, recipients, contentKey); err != nil {
		t.Fatal(err)
	}

	// A decodes the keyload successfully.
	aBranchState := ddml.NewWrapContext().Spongos()
	aPriv, _ := subA.ExchangeKeyPair()
	au := ddml.NewUnwrapContext(kw.Bytes())
	aContent, err := UnwrapKeyload(context.Background(), au, aBranchState, author.Identifier(), subA.Identifier(), aPriv, id.NewPSKTable(), nil)
	if err != nil {
		t.Fatalf("subscriber A: unexpected error %v", err)
	}
	if aContent.ContentKey != contentKey {
		t.Fatalf("subscriber A: content key mismatch")
	}

	// B has no slot and must see ErrKeyNotFound.
	bBranchState := ddml.NewWrapContext().Spongos()
	bPriv, _ := subB.ExchangeKeyPair()
	bu := ddml.NewUnwrapContext(kw.Bytes())
	if _, err := UnwrapKeyload(context.Background(), bu, bBranchState, author.Identifier(), subB.Identifier(), bPriv, id.NewPSKTable(), nil); err != ErrKeyNotFound {
		t.Fatalf("subscriber B: expected ErrKeyNotFound, got %v", err)
	}

	// A third party holding only the PSK decodes via the PSK slot.
	pskTable := id.NewPSKTable()
	pskTable.Insert(psk)
	cBranchState := ddml.NewWrapContext().Spongos()
	cu := ddml.NewUnwrapContext(kw.Bytes())
	cContent, err := UnwrapKeyload(context.Background(), cu, cBranchState, author.Identifier(), id.NewPSKIdentifier(psk.ID), [32]byte{}, pskTable, nil)
	if err != nil {
		t.Fatalf("psk holder: unexpected error %v", err)
	}
	if cContent.ContentKey != contentKey {
		t.Fatalf("psk holder: content key mismatch")
	}
}

func TestSizeofKeyloadMatchesWrap(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("sizeof-keyload-author-seed"))
	if err != nil {
		t.Fatal(err)
	}
	subA, err := id.NewEd25519Identity([]byte("sizeof-keyload-subA"))
	if err != nil {
		t.Fatal(err)
	}
	var pskKey [id.PSKSize]byte
	copy(pskKey[:], []byte("psk-seed-psk-seed-psk-seed-4567"))
	psk := id.NewPSK(pskKey)

	branchState := ddml.NewWrapContext().Spongos()
	var nonce [KeyloadNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		t.Fatal(err)
	}
	var contentKey [32]byte
	if _, err := rand.Read(contentKey[:]); err != nil {
		t.Fatal(err)
	}

	_, subAPub := subA.ExchangeKeyPair()
	recipients := []KeyloadRecipient{
		{Identifier: subA.Identifier(), ExchangePub: subAPub},
		{Identifier: id.NewPSKIdentifier(psk.ID), PSKKey: psk.Key},
	}

	kw := ddml.NewWrapContext()
	if err := WrapKeyload(kw, branchState, author, nonce, recipients, contentKey); err != nil {
		t.Fatal(err)
	}
	if got, want := SizeofKeyload(author, recipients), len(kw.Bytes()); got != want {
		t.Fatalf("SizeofKeyload = %d, actual wrap produced %d bytes", got, want)
	}
}

func TestKeyloadRejectsTamperedSignature(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("keyload-tamper-author-seed"))
	if err != nil {
		t.Fatal(err)
	}
	subA, err := id.NewEd25519Identity([]byte("keyload-tamper-subA"))
	if err != nil {
		t.Fatal(err)
	}

	branchState := ddml.NewWrapContext().Spongos()
	var nonce [KeyloadNonceSize]byte
	var contentKey [32]byte
	if _, err := rand.Read(contentKey[:]); err != nil {
		t.Fatal(err)
	}
	_, subAPub := subA.ExchangeKeyPair()
	recipients := []KeyloadRecipient{{Identifier: subA.Identifier(), ExchangePub: subAPub}}

	kw := ddml.NewWrapContext()
	if err := WrapKeyload(kw, branchState, author, nonce, recipients, contentKey); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), kw.Bytes()...)
	raw[len(raw)-1] ^= 0xff

	aBranchState := ddml.NewWrapContext().Spongos()
	aPriv, _ := subA.ExchangeKeyPair()
	au := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapKeyload(context.Background(), au, aBranchState, author.Identifier(), subA.Identifier(), aPriv, id.NewPSKTable(), nil); err != ErrSignatureMismatch {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}
