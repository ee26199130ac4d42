package ddml

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func genX25519(t *testing.T, seed byte) (priv, pub [32]byte) {
	t.Helper()
	copy(priv[:], bytes.Repeat([]byte{seed}, 32))
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		t.Fatal(err)
	}
	copy(pub[:], pubSlice)
	return priv, pub
}

func TestX25519SealOpenRoundTrip(t *testing.T) {
	recipientPriv, recipientPub := genX25519(t, 0x09)

	contentKey := bytes.Repeat([]byte{0xAB}, ContentKeySize)

	w := NewWrapContext()
	if err := w.X25519Seal(recipientPub); err != nil {
		t.Fatal(err)
	}
	if err := w.MaskFixed(contentKey); err != nil {
		t.Fatal(err)
	}

	u := NewUnwrapContext(w.Bytes())
	if err := u.X25519Open(recipientPriv); err != nil {
		t.Fatal(err)
	}
	opened, err := u.MaskFixed(ContentKeySize)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, contentKey) {
		t.Fatalf("x25519 seal/open round trip failed: got %x want %x", opened, contentKey)
	}
}

func TestX25519SealProducesFreshEphemeralKeyEachCall(t *testing.T) {
	_, recipientPub := genX25519(t, 0x09)

	w1 := NewWrapContext()
	if err := w1.X25519Seal(recipientPub); err != nil {
		t.Fatal(err)
	}
	w2 := NewWrapContext()
	if err := w2.X25519Seal(recipientPub); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(w1.Bytes(), w2.Bytes()) {
		t.Fatalf("two seals to the same recipient produced identical ephemeral keys")
	}
}

func TestPSKAbsorbExternalRoundTrip(t *testing.T) {
	psk := []byte("sixteen byte psk")
	contentKey := bytes.Repeat([]byte{0x42}, ContentKeySize)

	w := NewWrapContext()
	if err := w.AbsorbExternalFixed(psk); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := w.MaskFixed(contentKey); err != nil {
		t.Fatal(err)
	}

	u := NewUnwrapContext(w.Bytes())
	if err := u.AbsorbExternalFixed(psk); err != nil {
		t.Fatal(err)
	}
	if err := u.Commit(); err != nil {
		t.Fatal(err)
	}
	opened, err := u.MaskFixed(ContentKeySize)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, contentKey) {
		t.Fatalf("psk round trip failed: got %x want %x", opened, contentKey)
	}
}

func TestSignVerifyEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	w := NewWrapContext()
	w.AbsorbFixed([]byte("signed content"))
	if err := w.SignEd25519(priv); err != nil {
		t.Fatal(err)
	}

	u := NewUnwrapContext(w.Bytes())
	if _, err := u.AbsorbFixed(len("signed content")); err != nil {
		t.Fatal(err)
	}
	if err := u.VerifyEd25519(pub); err != nil {
		t.Fatalf("verification failed: %v", err)
	}
}

func TestSignVerifyEd25519RejectsTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	w := NewWrapContext()
	w.AbsorbFixed([]byte("signed content"))
	if err := w.SignEd25519(priv); err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte(nil), w.Bytes()...)
	tampered[len(tampered)-1] ^= 0xff

	u := NewUnwrapContext(tampered)
	if _, err := u.AbsorbFixed(len("signed content")); err != nil {
		t.Fatal(err)
	}
	if err := u.VerifyEd25519(pub); err != ErrSignatureMismatch {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}
