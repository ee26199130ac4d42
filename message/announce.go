package message

import (
	"context"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
)

// AnnounceContent is the base-branch announce content:
// absorb(author_identifier); absorb(author_ke_pubkey); absorb(base_topic);
// sign(author); commit. It establishes AppAddr and the root spongos for
// the base branch.
type AnnounceContent struct {
	AuthorIdentifier id.Identifier
	AuthorExchangePub [32]byte
	BaseTopic Topic
}

// WrapAnnounce serializes content, signing it with author.
func WrapAnnounce(ctx *ddml.WrapContext, author *id.Identity, baseTopic Topic) error {
	if err := author.Identifier().AbsorbTagged(ctx); err != nil {
		return err
	}
	_, pub := author.ExchangeKeyPair()
	if err := ctx.AbsorbFixed(pub[:]); err != nil {
		return err
	}
	if err := ctx.AbsorbVar([]byte(baseTopic)); err != nil {
		return err
	}
	if err := author.Sign(ctx); err != nil {
		return err
	}
	return ctx.Commit()
}

// SizeofAnnounce returns the on-wire width WrapAnnounce(author, baseTopic)
// would occupy.
func SizeofAnnounce(author *id.Identity, baseTopic Topic) int {
	n := author.Identifier().SizeofTagged()
	n += 32 // author exchange public key
	n += ddml.SizeOfSize(uint64(len(baseTopic))) + len(baseTopic)
	n += author.SizeofSign()
	return n
}

// UnwrapAnnounce parses and verifies an announce, returning its content.
func UnwrapAnnounce(ctx context.Context, uctx *ddml.UnwrapContext, resolver id.DIDResolver) (AnnounceContent, error) {
	var content AnnounceContent
	var err error

	content.AuthorIdentifier, err = id.UnabsorbTagged(uctx)
	if err != nil {
		return AnnounceContent{}, err
	}

	pubBytes, err := uctx.AbsorbFixed(32)
	if err != nil {
		return AnnounceContent{}, err
	}
	copy(content.AuthorExchangePub[:], pubBytes)

	topicBytes, err := uctx.AbsorbVar()
	if err != nil {
		return AnnounceContent{}, err
	}
	content.BaseTopic = Topic(topicBytes)

	if err := id.Verify(ctx, uctx, content.AuthorIdentifier, resolver); err != nil {
		return AnnounceContent{}, toSignatureError(err)
	}
	return content, uctx.Commit()
}

func toSignatureError(err error) error {
	if err == ddml.ErrSignatureMismatch {
		return ErrSignatureMismatch
	}
	return err
}
