package weave

import (
	"context"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/message"
	"github.com/opd-ai/weave/spongos"
)

// ReceiveOutcome classifies what processing a message actually did,
// beyond the plain error/no-error split.
type ReceiveOutcome uint8

const (
	// OutcomeRejected means the message failed validation (malformed
	// header, signature, MAC, or permission check) and left no trace in
	// local state.
	OutcomeRejected ReceiveOutcome = iota
	// OutcomeOrphan means the message's linked parent spongos was not in
	// the local cache; retry after a sync once it becomes available.
	OutcomeOrphan
	// OutcomeMembership means an Announce, BranchAnnounce, Subscribe, or
	// Unsubscribe was processed, changing who can do what on a branch.
	OutcomeMembership
	// OutcomeKeyload means a keyload was processed - Err is nil on a
	// matching recipient slot, ErrKeyNotFound otherwise (the branch
	// cursor still advances either way).
	OutcomeKeyload
	// OutcomePacket means a SignedPacket or TaggedPacket payload was
	// recovered.
	OutcomePacket
)

// ReceiveResult is what Receive returns alongside (or instead of) an
// error.
type ReceiveResult struct {
	Outcome ReceiveOutcome
	Topic message.Topic
	Publisher id.Identifier
	PublicPayload []byte
	MaskedPayload []byte
}

// Receive fetches the message at address, parses its HDF, and dispatches
// to the matching content processor, updating branch/cursor/cache state
// only on outcomes classified as state-mutating. A TransportFailure,
// malformed header, or failed signature/MAC leaves all local state
// exactly as it was before the call.
func (u *User) Receive(ctx context.Context, address message.Address) (ReceiveResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	candidates, err := u.transport.RecvMessages(ctx, address)
	if err != nil {
		return ReceiveResult{}, wrapTransportErr("recv_messages", err)
	}
	switch len(candidates) {
	case 0:
		return ReceiveResult{}, ErrUnknownBranch
	case 1:
	default:
		return ReceiveResult{}, ErrNotUnique
	}
	raw := candidates[0]

	hdfCtx := ddml.NewUnwrapContext(raw)
	hdf, err := message.UnwrapHDF(hdfCtx, u.lookupSpongos)
	if err != nil {
		if err == message.ErrLinkedSpongosUnavailable {
			return ReceiveResult{Outcome: OutcomeOrphan}, ErrOrphanMessage
		}
		return ReceiveResult{}, err
	}
	contentCtx := ddml.NewUnwrapContext(hdfCtx.Rest())

	if hdf.MessageType == message.TypeAnnounce {
		return u.receiveAnnounce(ctx, address, hdf, contentCtx)
	}
	if hdf.MessageType == message.TypeBranchAnnounce {
		// A branch announce names a topic hash this user may never have
		// seen before - that's exactly what it registers - so it must
		// dispatch before the generic topicsByHash lookup below.
		return u.receiveBranchAnnounce(ctx, address, hdf, contentCtx, hdfCtx.Spongos())
	}

	topic, ok := u.topicsByHash[hdf.TopicHash]
	if !ok {
		return ReceiveResult{}, ErrUnknownBranch
	}

	if hdf.LinkedMsgID == nil {
		return ReceiveResult{}, ErrMalformedHeader
	}
	// UnwrapHDF already resolved and joined the linked spongos while
	// verifying the header MAC; the content processor continues from
	// that same keyed state rather than re-forking the raw cached
	// spongos independently, so tampering with any header field changes
	// what every downstream squeeze produces.
	fork := hdfCtx.Spongos().Fork()

	switch hdf.MessageType {
	case message.TypeSignedPacket:
		return u.receiveSignedPacket(ctx, address, topic, hdf, contentCtx, fork)
	case message.TypeTaggedPacket:
		return u.receiveTaggedPacket(address, topic, hdf, contentCtx, fork)
	case message.TypeKeyload:
		return u.receiveKeyload(ctx, address, topic, hdf, contentCtx, fork)
	case message.TypeSubscribe:
		return u.receiveSubscribe(ctx, address, topic, hdf, contentCtx, fork)
	case message.TypeUnsubscribe:
		return u.receiveUnsubscribe(ctx, address, topic, hdf, contentCtx, fork)
	default:
		return ReceiveResult{}, ErrUnsupportedMessageType
	}
}

func (u *User) receiveAnnounce(ctx context.Context, address message.Address, hdf message.HDF, contentCtx *ddml.UnwrapContext) (ReceiveResult, error) {
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}
	content, err := message.UnwrapAnnounce(ctx, contentCtx, u.resolver)
	if err != nil {
		return ReceiveResult{}, err
	}
	if content.BaseTopic.Hash() != hdf.TopicHash {
		return ReceiveResult{}, ErrMalformedHeader
	}

	u.haveStream = true
	u.baseTopic = content.BaseTopic
	u.authorIdentifier = content.AuthorIdentifier
	u.authorExchangePub = content.AuthorExchangePub
	u.topicsByHash[hdf.TopicHash] = content.BaseTopic
	u.branchAdmin[content.BaseTopic] = content.AuthorIdentifier
	u.branches.NewBranch(content.BaseTopic)
	u.branches.InsertCursor(content.BaseTopic, id.NewAdminPermission(content.AuthorIdentifier), 0)

	u.announceMsgID = address.MsgID
	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), content.BaseTopic, false)
	u.branches.SetLatestLink(content.BaseTopic, address.MsgID)

	return ReceiveResult{Outcome: OutcomeMembership, Topic: content.BaseTopic, Publisher: content.AuthorIdentifier}, nil
}

func (u *User) receiveBranchAnnounce(ctx context.Context, address message.Address, hdf message.HDF, contentCtx *ddml.UnwrapContext, hdfSpongos *spongos.Spongos) (ReceiveResult, error) {
	if hdf.LinkedMsgID == nil {
		return ReceiveResult{}, ErrMalformedHeader
	}
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}

	parentTopic, ok := u.msgTopic[*hdf.LinkedMsgID]
	if !ok {
		return ReceiveResult{Outcome: OutcomeOrphan}, ErrOrphanMessage
	}
	// UnwrapHDF already joined the parent spongos while verifying the
	// header MAC; fork from that same keyed state rather than
	// re-resolving and re-forking the raw cached spongos.
	parentFork := hdfSpongos.Fork()

	perm, ok := u.branches.GetPermission(parentTopic, hdf.Publisher)
	if !ok || !perm.CanManageBranch() {
		return ReceiveResult{}, ErrPermissionDenied
	}

	content, err := message.UnwrapBranchAnnounce(ctx, contentCtx, parentFork, hdf.Publisher, u.resolver)
	if err != nil {
		return ReceiveResult{}, err
	}
	if content.NewTopic.Hash() != hdf.TopicHash {
		return ReceiveResult{}, ErrMalformedHeader
	}

	u.topicsByHash[hdf.TopicHash] = content.NewTopic
	u.branchAdmin[content.NewTopic] = hdf.Publisher
	u.branches.NewBranch(content.NewTopic)
	u.branches.InsertCursor(content.NewTopic, id.NewAdminPermission(hdf.Publisher), 0)

	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), content.NewTopic, false)
	u.branches.SetLatestLink(content.NewTopic, address.MsgID)
	u.advanceCursor(content.NewTopic, hdf.Publisher, hdf.Sequence)

	return ReceiveResult{Outcome: OutcomeMembership, Topic: content.NewTopic, Publisher: hdf.Publisher}, nil
}

func (u *User) receiveSignedPacket(ctx context.Context, address message.Address, topic message.Topic, hdf message.HDF, contentCtx *ddml.UnwrapContext, fork *spongos.Spongos) (ReceiveResult, error) {
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}
	perm, ok := u.branches.GetPermission(topic, hdf.Publisher)
	if !ok || !perm.CanPublish() {
		return ReceiveResult{}, ErrPermissionDenied
	}

	content, err := message.UnwrapSignedPacket(ctx, contentCtx, fork, hdf.Publisher, u.resolver)
	if err != nil {
		return ReceiveResult{}, err
	}

	u.evictBranchTip(topic, address.MsgID)
	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), topic, false)
	u.branches.SetLatestLink(topic, address.MsgID)
	u.advanceCursor(topic, hdf.Publisher, hdf.Sequence)

	return ReceiveResult{
		Outcome: OutcomePacket,
		Topic: topic,
		Publisher: hdf.Publisher,
		PublicPayload: content.PublicPayload,
		MaskedPayload: content.MaskedPayload,
	}, nil
}

func (u *User) receiveTaggedPacket(address message.Address, topic message.Topic, hdf message.HDF, contentCtx *ddml.UnwrapContext, fork *spongos.Spongos) (ReceiveResult, error) {
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}
	content, err := message.UnwrapTaggedPacket(contentCtx, fork)
	if err != nil {
		return ReceiveResult{}, err
	}

	u.evictBranchTip(topic, address.MsgID)
	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), topic, false)
	u.branches.SetLatestLink(topic, address.MsgID)
	u.advanceCursor(topic, hdf.Publisher, hdf.Sequence)

	return ReceiveResult{
		Outcome: OutcomePacket,
		Topic: topic,
		Publisher: hdf.Publisher,
		PublicPayload: content.PublicPayload,
		MaskedPayload: content.MaskedPayload,
	}, nil
}

func (u *User) receiveKeyload(ctx context.Context, address message.Address, topic message.Topic, hdf message.HDF, contentCtx *ddml.UnwrapContext, fork *spongos.Spongos) (ReceiveResult, error) {
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}
	perm, ok := u.branches.GetPermission(topic, hdf.Publisher)
	if !ok || !perm.CanManageBranch() {
		return ReceiveResult{}, ErrPermissionDenied
	}

	var localIdentifier id.Identifier
	var localExchangePriv [32]byte
	if u.identity != nil {
		localIdentifier = u.identity.Identifier()
		localExchangePriv, _ = u.identity.ExchangeKeyPair()
	}

	content, err := message.UnwrapKeyload(ctx, contentCtx, fork, hdf.Publisher, localIdentifier, localExchangePriv, u.psks, u.resolver)
	if err != nil && err != ErrKeyNotFound {
		return ReceiveResult{}, err
	}

	// The keyload's spongos is cached whether or not this user held a
	// matching recipient slot - later TaggedPackets on this branch fork
	// from it either way. A non-recipient's copy never absorbed the
	// content key, so those later packets fail to unwrap for this user.
	u.evictBranchTip(topic, address.MsgID)
	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), topic, false)
	u.branches.SetLatestLink(topic, address.MsgID)
	u.advanceCursor(topic, hdf.Publisher, hdf.Sequence)

	result := ReceiveResult{Outcome: OutcomeKeyload, Topic: topic, Publisher: hdf.Publisher}
	if err == ErrKeyNotFound {
		return result, ErrKeyNotFound
	}
	u.contentKeys[topic] = content.ContentKey
	return result, nil
}

func (u *User) receiveSubscribe(ctx context.Context, address message.Address, topic message.Topic, hdf message.HDF, contentCtx *ddml.UnwrapContext, fork *spongos.Spongos) (ReceiveResult, error) {
	if u.identity == nil {
		return ReceiveResult{}, ErrNoIdentity
	}
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}
	authorExchangePriv, _ := u.identity.ExchangeKeyPair()

	content, err := message.UnwrapSubscribe(ctx, contentCtx, fork, authorExchangePriv, u.resolver)
	if err != nil {
		return ReceiveResult{}, err
	}

	u.branches.InsertCursor(topic, id.NewReadPermission(content.SubscriberIdentifier), 0)
	u.subscriptions[content.SubscriberIdentifier] = subscriptionRecord{UnsubscribeKey: content.UnsubscribeKey}

	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), topic, false)
	u.advanceCursor(topic, hdf.Publisher, hdf.Sequence)

	return ReceiveResult{Outcome: OutcomeMembership, Topic: topic, Publisher: content.SubscriberIdentifier}, nil
}

func (u *User) receiveUnsubscribe(ctx context.Context, address message.Address, topic message.Topic, hdf message.HDF, contentCtx *ddml.UnwrapContext, fork *spongos.Spongos) (ReceiveResult, error) {
	record, ok := u.subscriptions[hdf.Publisher]
	if !ok {
		return ReceiveResult{}, ErrKeyNotFound
	}
	if _, err := message.UnwrapPCFHeader(contentCtx); err != nil {
		return ReceiveResult{}, err
	}

	if _, err := message.UnwrapUnsubscribe(ctx, contentCtx, fork, hdf.Publisher, record.UnsubscribeKey, u.resolver); err != nil {
		return ReceiveResult{}, err
	}

	delete(u.subscriptions, hdf.Publisher)
	u.branches.Remove(hdf.Publisher)
	u.cacheSpongos(address.MsgID, contentCtx.Spongos(), topic, false)

	return ReceiveResult{Outcome: OutcomeMembership, Topic: topic, Publisher: hdf.Publisher}, nil
}
