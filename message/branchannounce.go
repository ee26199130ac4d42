package message

import (
	"context"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// BranchAnnounceContent is a new branch seeded from its parent's current
// spongos: join(parent_state); absorb(new_topic);
// sign(author_or_admin); commit.
type BranchAnnounceContent struct {
	NewTopic Topic
}

// WrapBranchAnnounce joins ctx's spongos to parentState before absorbing
// the new topic and signing with signer (the stream author or a branch
// admin).
func WrapBranchAnnounce(ctx *ddml.WrapContext, parentState *spongos.Spongos, signer *id.Identity, newTopic Topic) error {
	if err := ctx.Join(parentState); err != nil {
		return err
	}
	if err := ctx.AbsorbVar([]byte(newTopic)); err != nil {
		return err
	}
	if err := signer.Sign(ctx); err != nil {
		return err
	}
	return ctx.Commit()
}

// SizeofBranchAnnounce returns the on-wire width
// WrapBranchAnnounce(signer, newTopic) would occupy.
func SizeofBranchAnnounce(signer *id.Identity, newTopic Topic) int {
	n := ddml.SizeOfSize(uint64(len(newTopic))) + len(newTopic)
	n += signer.SizeofSign()
	return n
}

// UnwrapBranchAnnounce mirrors WrapBranchAnnounce, verifying the
// signature against signerIdentifier (the publisher from the enclosing
// HDF).
func UnwrapBranchAnnounce(ctx context.Context, uctx *ddml.UnwrapContext, parentState *spongos.Spongos, signerIdentifier id.Identifier, resolver id.DIDResolver) (BranchAnnounceContent, error) {
	if err := uctx.Join(parentState); err != nil {
		return BranchAnnounceContent{}, err
	}
	topicBytes, err := uctx.AbsorbVar()
	if err != nil {
		return BranchAnnounceContent{}, err
	}
	if err := id.Verify(ctx, uctx, signerIdentifier, resolver); err != nil {
		return BranchAnnounceContent{}, toSignatureError(err)
	}
	return BranchAnnounceContent{NewTopic: Topic(topicBytes)}, uctx.Commit()
}
