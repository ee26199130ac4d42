package message

import (
	"context"
	"testing"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
)

func TestAnnounceWrapUnwrapRoundTrip(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("author-seed"))
	if err != nil {
		t.Fatal(err)
	}

	w := ddml.NewWrapContext()
	if err := WrapAnnounce(w, author, Topic("base")); err != nil {
		t.Fatal(err)
	}

	u := ddml.NewUnwrapContext(w.Bytes())
	content, err := UnwrapAnnounce(context.Background(), u, nil)
	if err != nil {
		t.Fatal(err)
	}
	if content.BaseTopic != Topic("base") {
		t.Fatalf("got topic %q, want %q", content.BaseTopic, "base")
	}
	if !content.AuthorIdentifier.Equal(author.Identifier()) {
		t.Fatalf("author identifier mismatch")
	}
	_, wantPub := author.ExchangeKeyPair()
	if content.AuthorExchangePub != wantPub {
		t.Fatalf("exchange pubkey mismatch")
	}
}

func TestSizeofAnnounceMatchesWrap(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("sizeof-author-seed"))
	if err != nil {
		t.Fatal(err)
	}
	w := ddml.NewWrapContext()
	if err := WrapAnnounce(w, author, Topic("a-longer-base-topic-name")); err != nil {
		t.Fatal(err)
	}
	if got, want := SizeofAnnounce(author, Topic("a-longer-base-topic-name")), len(w.Bytes()); got != want {
		t.Fatalf("SizeofAnnounce = %d, actual wrap produced %d bytes", got, want)
	}
}

func TestSizeofBranchAnnounceMatchesWrap(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("sizeof-branch-author-seed"))
	if err != nil {
		t.Fatal(err)
	}
	parentState := ddml.NewWrapContext().Spongos()
	w := ddml.NewWrapContext()
	if err := WrapBranchAnnounce(w, parentState, author, Topic("branch-xyz")); err != nil {
		t.Fatal(err)
	}
	if got, want := SizeofBranchAnnounce(author, Topic("branch-xyz")), len(w.Bytes()); got != want {
		t.Fatalf("SizeofBranchAnnounce = %d, actual wrap produced %d bytes", got, want)
	}
}

func TestAnnounceRejectsTamperedSignature(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("author-seed"))
	if err != nil {
		t.Fatal(err)
	}

	w := ddml.NewWrapContext()
	if err := WrapAnnounce(w, author, Topic("base")); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), w.Bytes()...)
	raw[len(raw)-1] ^= 0xff

	u := ddml.NewUnwrapContext(raw)
	if _, err := UnwrapAnnounce(context.Background(), u, nil); err != ErrSignatureMismatch {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestBranchAnnounceWrapUnwrapRoundTrip(t *testing.T) {
	author, err := id.NewEd25519Identity([]byte("branch-author-seed"))
	if err != nil {
		t.Fatal(err)
	}

	w := ddml.NewWrapContext()
	if err := WrapAnnounce(w, author, Topic("base")); err != nil {
		t.Fatal(err)
	}
	announceState := w.Spongos()

	bw := ddml.NewWrapContext()
	if err := WrapBranchAnnounce(bw, announceState, author, Topic("branch-two")); err != nil {
		t.Fatal(err)
	}

	u := ddml.NewUnwrapContext(w.Bytes())
	if _, err := UnwrapAnnounce(context.Background(), u, nil); err != nil {
		t.Fatal(err)
	}
	unwrapAnnounceState := u.Spongos()

	bu := ddml.NewUnwrapContext(bw.Bytes())
	content, err := UnwrapBranchAnnounce(context.Background(), bu, unwrapAnnounceState, author.Identifier(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if content.NewTopic != Topic("branch-two") {
		t.Fatalf("got topic %q, want %q", content.NewTopic, "branch-two")
	}
}
