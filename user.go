package weave

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/message"
	"github.com/opd-ai/weave/spongos"
	"github.com/opd-ai/weave/state"
	"github.com/opd-ai/weave/transport"
)

// subscriptionRecord is what the stream author remembers about a
// subscriber after processing its Subscribe message: the capability it
// must present again to unsubscribe.
type subscriptionRecord struct {
	UnsubscribeKey [message.UnsubscribeKeySize]byte
}

// User is the per-participant facade: identity, PSK table, branch
// store, app address, base topic, and spongos cache, wired together
// the way toxcore.go's Tox struct wires its own
// subsystems. A User is not safe for concurrent use by multiple
// goroutines driving its send/receive/sync calls at once;
// the internal mutex only protects against accidental concurrent
// misuse, not to enable it.
type User struct {
	mu sync.Mutex

	identity *id.Identity
	psks *id.PSKTable
	resolver id.DIDResolver
	transport transport.Transport
	lean bool

	branches *state.BranchStore

	appAddr message.AppAddr
	baseTopic message.Topic
	haveStream bool
	authorIdentifier id.Identifier
	authorExchangePub [32]byte

	topicsByHash map[message.TopicHash]message.Topic
	branchAdmin map[message.Topic]id.Identifier
	contentKeys map[message.Topic][32]byte

	cache map[message.MsgID]*spongos.Spongos
	cacheSelf map[message.MsgID]bool
	msgTopic map[message.MsgID]message.Topic

	announceMsgID message.MsgID
	subscribeMsgID message.MsgID
	haveSubscribeMsgID bool
	ownUnsubscribeKey [message.UnsubscribeKeySize]byte

	subscriptions map[id.Identifier]subscriptionRecord

	log *logrus.Entry
}

// New builds a User with no stream association yet; callers use
// NewAuthor to originate a stream or NewSubscriber plus Receive on an
// announce address to join one.
func New(opts *Options) (*User, error) {
	norm, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	return &User{
		identity: norm.Identity,
		psks: norm.PSKs,
		resolver: norm.Resolver,
		transport: norm.Transport,
		lean: norm.Lean,
		branches: state.NewBranchStore(),
		topicsByHash: make(map[message.TopicHash]message.Topic),
		branchAdmin: make(map[message.Topic]id.Identifier),
		contentKeys: make(map[message.Topic][32]byte),
		cache: make(map[message.MsgID]*spongos.Spongos),
		cacheSelf: make(map[message.MsgID]bool),
		msgTopic: make(map[message.MsgID]message.Topic),
		subscriptions: make(map[id.Identifier]subscriptionRecord),
		log: logrus.WithField("component", "weave.user"),
	}, nil
}

// NewAuthor builds a User and immediately originates a new stream:
// derives the stream's AppAddr from the author's identifier and nonce,
// wraps and sends the announce message, and seeds the branch store with
// the author as base-topic Admin.
func NewAuthor(ctx context.Context, opts *Options, baseTopic string, nonce []byte) (*User, error) {
	u, err := New(opts)
	if err != nil {
		return nil, err
	}
	if u.identity == nil {
		return nil, ErrNoIdentity
	}

	topic := message.Topic(baseTopic)
	u.appAddr = message.DeriveAppAddr(u.identity.Identifier(), nonce)

	publisher := u.identity.Identifier()
	hdf := message.NewHDF(message.TypeAnnounce, topic.Hash(), publisher, 0)

	u.haveStream = true
	u.authorIdentifier = publisher
	_, u.authorExchangePub = u.identity.ExchangeKeyPair()
	u.topicsByHash[hdf.TopicHash] = topic
	u.branchAdmin[topic] = publisher
	u.branches.NewBranch(topic)
	u.branches.InsertCursor(topic, id.NewAdminPermission(publisher), 0)

	contentSize := message.SizeofPCFHeader() + message.SizeofAnnounce(u.identity, topic)
	addr, err := u.finalizeSend(ctx, topic, hdf, nil, contentSize, func(contentCtx *ddml.WrapContext, _ *spongos.Spongos) error {
		return message.WrapAnnounce(contentCtx, u.identity, topic)
	}, true, true)
	if err != nil {
		return nil, err
	}
	u.baseTopic = topic
	u.announceMsgID = addr.MsgID

	u.log.WithFields(logrus.Fields{"base_topic": baseTopic}).Info("originated stream")
	return u, nil
}

// NewSubscriber builds a User that knows a stream's author and nonce
// (and can therefore derive its AppAddr) but has not yet processed that
// stream's announce message. Call Receive on AnnounceAddress to
// complete the join.
func NewSubscriber(opts *Options, authorIdentifier id.Identifier, nonce []byte) (*User, error) {
	u, err := New(opts)
	if err != nil {
		return nil, err
	}
	u.appAddr = message.DeriveAppAddr(authorIdentifier, nonce)
	u.authorIdentifier = authorIdentifier
	return u, nil
}

// Identifier returns this user's public identifier, if it has a local
// identity.
func (u *User) Identifier() (id.Identifier, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.identity == nil {
		return id.Identifier{}, false
	}
	return u.identity.Identifier(), true
}

// AnnounceAddress returns the transport address of baseTopic's announce
// message, computable from public information alone (the author's
// identifier, the stream nonce, and the topic name).
func (u *User) AnnounceAddress(baseTopic string) message.Address {
	topic := message.Topic(baseTopic)
	return message.Address{
		AppAddr: u.appAddr,
		MsgID: message.DeriveMsgID(u.appAddr, u.authorIdentifier, topic.Hash(), 0),
	}
}

// GrantPermission records identifier's access level on topic, purely as
// local bookkeeping - this core has no wire message carrying permission
// grants (keyload only distributes the content key; membership is
// established out of band and applied identically by every party that
// needs to enforce it, the same way Transport and DIDResolver are
// external collaborators). A self-grant must be applied before the next
// PermissionDenied check is expected to change.
func (u *User) GrantPermission(topic message.Topic, permission id.Permission) {
	u.mu.Lock()
	defer u.mu.Unlock()
	cursor, _ := u.branches.GetCursor(topic, permission.Identifier)
	u.branches.InsertCursor(topic, permission, cursor)
}

func (u *User) requirePermission(topic message.Topic, identifier id.Identifier, check func(id.Permission) bool) error {
	perm, ok := u.branches.GetPermission(topic, identifier)
	if !ok || !check(perm) {
		return ErrPermissionDenied
	}
	return nil
}

func (u *User) nextSequence(topic message.Topic, publisher id.Identifier) uint64 {
	cursor, ok := u.branches.GetCursor(topic, publisher)
	if !ok {
		return 1
	}
	return cursor + 1
}

// advanceCursor records seq as identifier's cursor on topic, never
// regressing it: re-receiving an older, still-cached message must not
// move the stored cursor backwards.
func (u *User) advanceCursor(topic message.Topic, identifier id.Identifier, seq uint64) {
	perm, ok := u.branches.GetPermission(topic, identifier)
	if !ok {
		perm = id.NewReadPermission(identifier)
	}
	if existing, ok := u.branches.GetCursor(topic, identifier); ok && existing > seq {
		seq = existing
	}
	u.branches.InsertCursor(topic, perm, seq)
}

func (u *User) lookupSpongos(msgID message.MsgID) (*spongos.Spongos, bool) {
	s, ok := u.cache[msgID]
	return s, ok
}

// cacheSpongos records s as the post-wrap/post-unwrap state for msgID.
func (u *User) cacheSpongos(msgID message.MsgID, s *spongos.Spongos, topic message.Topic, selfAuthored bool) {
	u.cache[msgID] = s
	u.msgTopic[msgID] = topic
	if selfAuthored {
		u.cacheSelf[msgID] = true
	}
}

// evictBranchTip drops topic's current latest-link spongos from the
// cache in lean mode, unless it is the announce message or something
// this user authored itself (three retained categories).
// Call this only immediately before the branch tip actually moves
// (ordinary packets, keyload, branch-announce) - Subscribe/Unsubscribe
// never move a branch's tip, so they must never call this.
func (u *User) evictBranchTip(topic message.Topic, newMsgID message.MsgID) {
	if !u.lean {
		return
	}
	prevID, ok := u.branches.GetLatestLink(topic)
	if !ok || prevID == newMsgID {
		return
	}
	if prevID == u.announceMsgID || u.cacheSelf[prevID] {
		return
	}
	delete(u.cache, prevID)
	delete(u.cacheSelf, prevID)
	delete(u.msgTopic, prevID)
}

// finalizeSend wraps hdf onto its own context, seeded from linked (nil
// for Announce, which has nothing to link to) so its trailing MAC is
// keyed rather than a public hash of the header bytes. wrapContent then
// continues from hdfCtx's own post-header spongos state, not from
// linked directly - tampering with any header field changes that state
// and therefore every squeeze wrapContent performs downstream, binding
// the header to the payload. contentSize, measured ahead of wrapping by
// the caller's Sizeof<Type> pass, populates hdf.PayloadLength (a real
// sizeof consumer rather than a field left permanently zero). The two
// contexts' bytes are concatenated with no separator, sent, and local
// state is updated only once the transport confirms the send was newly
// accepted - a replayed idempotent send (SendResponse.Accepted == false)
// must not re-mutate cursors or the branch tip (cancellation).
func (u *User) finalizeSend(ctx context.Context, topic message.Topic, hdf message.HDF, linked *spongos.Spongos, contentSize int, wrapContent func(*ddml.WrapContext, *spongos.Spongos) error, selfAuthored, updateLatestLink bool) (message.Address, error) {
	hdf.PayloadLength = uint16(contentSize & 0x3ff)

	hdfCtx := ddml.NewWrapContext()
	if err := message.WrapHDF(hdfCtx, hdf, linked); err != nil {
		return message.Address{}, err
	}

	contentCtx := ddml.NewWrapContext()
	if err := message.WrapPCFHeader(contentCtx, message.NewPCFHeader()); err != nil {
		return message.Address{}, err
	}
	if err := wrapContent(contentCtx, hdfCtx.Spongos()); err != nil {
		return message.Address{}, err
	}

	wire := append(append([]byte(nil), hdfCtx.Bytes()...), contentCtx.Bytes()...)
	addr := message.Address{
		AppAddr: u.appAddr,
		MsgID: message.DeriveMsgID(u.appAddr, hdf.Publisher, hdf.TopicHash, hdf.Sequence),
	}

	resp, err := u.transport.SendMessage(ctx, addr, wire)
	if err != nil {
		return message.Address{}, wrapTransportErr("send_message", err)
	}
	if !resp.Accepted {
		u.log.WithField("address", addr).Debug("send replay: transport already had this message, state left untouched")
		return addr, nil
	}

	if updateLatestLink {
		u.evictBranchTip(topic, addr.MsgID)
	}
	u.cacheSpongos(addr.MsgID, contentCtx.Spongos(), topic, selfAuthored)
	if updateLatestLink {
		u.branches.SetLatestLink(topic, addr.MsgID)
	}
	u.advanceCursor(topic, hdf.Publisher, hdf.Sequence)
	return addr, nil
}

// SendSignedPacket publishes a publisher-authenticated packet on topic.
// Requires ReadWrite or Admin permission.
func (u *User) SendSignedPacket(ctx context.Context, topic message.Topic, publicPayload, maskedPayload []byte) (message.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.identity == nil {
		return message.Address{}, ErrNoIdentity
	}
	publisher := u.identity.Identifier()
	if err := u.requirePermission(topic, publisher, id.Permission.CanPublish); err != nil {
		return message.Address{}, err
	}

	prevID, ok := u.branches.GetLatestLink(topic)
	if !ok {
		return message.Address{}, ErrUnknownBranch
	}
	prevSpongos, ok := u.lookupSpongos(prevID)
	if !ok {
		return message.Address{}, ErrOrphanMessage
	}
	fork := prevSpongos.Fork()

	seq := u.nextSequence(topic, publisher)
	linked := prevID
	hdf := message.NewHDF(message.TypeSignedPacket, topic.Hash(), publisher, seq)
	hdf.LinkedMsgID = &linked

	contentSize := message.SizeofPCFHeader() + message.SizeofSignedPacket(u.identity, publicPayload, maskedPayload)
	return u.finalizeSend(ctx, topic, hdf, fork, contentSize, func(contentCtx *ddml.WrapContext, prevState *spongos.Spongos) error {
		return message.WrapSignedPacket(contentCtx, prevState, u.identity, publicPayload, maskedPayload)
	}, true, true)
}

// SendTaggedPacket publishes a content-key-authenticated packet on
// topic. Any holder of the branch's content key may call this; there is
// no per-identity permission gate, only possession of the key installed
// by a prior keyload.
func (u *User) SendTaggedPacket(ctx context.Context, topic message.Topic, publicPayload, maskedPayload []byte) (message.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.identity == nil {
		return message.Address{}, ErrNoIdentity
	}
	if _, ok := u.contentKeys[topic]; !ok {
		return message.Address{}, ErrNoContentKey
	}
	publisher := u.identity.Identifier()

	prevID, ok := u.branches.GetLatestLink(topic)
	if !ok {
		return message.Address{}, ErrUnknownBranch
	}
	prevSpongos, ok := u.lookupSpongos(prevID)
	if !ok {
		return message.Address{}, ErrOrphanMessage
	}
	fork := prevSpongos.Fork()

	seq := u.nextSequence(topic, publisher)
	linked := prevID
	hdf := message.NewHDF(message.TypeTaggedPacket, topic.Hash(), publisher, seq)
	hdf.LinkedMsgID = &linked

	contentSize := message.SizeofPCFHeader() + message.SizeofTaggedPacket(publicPayload, maskedPayload)
	return u.finalizeSend(ctx, topic, hdf, fork, contentSize, func(contentCtx *ddml.WrapContext, prevState *spongos.Spongos) error {
		return message.WrapTaggedPacket(contentCtx, prevState, publicPayload, maskedPayload)
	}, true, true)
}

// SendKeyload distributes contentKey to recipients on topic. Admin-only.
func (u *User) SendKeyload(ctx context.Context, topic message.Topic, recipients []message.KeyloadRecipient, contentKey [32]byte) (message.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.identity == nil {
		return message.Address{}, ErrNoIdentity
	}
	publisher := u.identity.Identifier()
	if err := u.requirePermission(topic, publisher, id.Permission.CanManageBranch); err != nil {
		return message.Address{}, err
	}

	prevID, ok := u.branches.GetLatestLink(topic)
	if !ok {
		return message.Address{}, ErrUnknownBranch
	}
	prevSpongos, ok := u.lookupSpongos(prevID)
	if !ok {
		return message.Address{}, ErrOrphanMessage
	}
	fork := prevSpongos.Fork()

	seq := u.nextSequence(topic, publisher)
	linked := prevID
	hdf := message.NewHDF(message.TypeKeyload, topic.Hash(), publisher, seq)
	hdf.LinkedMsgID = &linked

	var nonce [message.KeyloadNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return message.Address{}, err
	}

	contentSize := message.SizeofPCFHeader() + message.SizeofKeyload(u.identity, recipients)
	addr, err := u.finalizeSend(ctx, topic, hdf, fork, contentSize, func(contentCtx *ddml.WrapContext, prevState *spongos.Spongos) error {
		return message.WrapKeyload(contentCtx, prevState, u.identity, nonce, recipients, contentKey)
	}, true, true)
	if err != nil {
		return message.Address{}, err
	}
	u.contentKeys[topic] = contentKey
	return addr, nil
}

// CreateBranch forks newTopic from parentTopic's current tip. Admin-only
// on the parent branch. Branches form a flat map<Topic,...> rather than
// a tree, so cyclic parent/child references can't arise.
func (u *User) CreateBranch(ctx context.Context, parentTopic, newTopic message.Topic) (message.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.identity == nil {
		return message.Address{}, ErrNoIdentity
	}
	signer := u.identity.Identifier()
	if err := u.requirePermission(parentTopic, signer, id.Permission.CanManageBranch); err != nil {
		return message.Address{}, err
	}

	parentID, ok := u.branches.GetLatestLink(parentTopic)
	if !ok {
		return message.Address{}, ErrUnknownBranch
	}
	parentSpongos, ok := u.lookupSpongos(parentID)
	if !ok {
		return message.Address{}, ErrOrphanMessage
	}
	fork := parentSpongos.Fork()

	linked := parentID
	hdf := message.NewHDF(message.TypeBranchAnnounce, newTopic.Hash(), signer, 0)
	hdf.LinkedMsgID = &linked

	u.topicsByHash[hdf.TopicHash] = newTopic
	u.branchAdmin[newTopic] = signer
	u.branches.NewBranch(newTopic)
	u.branches.InsertCursor(newTopic, id.NewAdminPermission(signer), 0)

	contentSize := message.SizeofPCFHeader() + message.SizeofBranchAnnounce(u.identity, newTopic)
	return u.finalizeSend(ctx, newTopic, hdf, fork, contentSize, func(contentCtx *ddml.WrapContext, prevState *spongos.Spongos) error {
		return message.WrapBranchAnnounce(contentCtx, prevState, u.identity, newTopic)
	}, true, true)
}

// Subscribe sends a subscription request linked to the stream's
// announce message. Requires the announce to have
// already been processed (via NewAuthor or a successful Receive on
// AnnounceAddress).
func (u *User) Subscribe(ctx context.Context) (message.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.identity == nil {
		return message.Address{}, ErrNoIdentity
	}
	if !u.haveStream {
		return message.Address{}, ErrUnknownBranch
	}
	announceSpongos, ok := u.lookupSpongos(u.announceMsgID)
	if !ok {
		return message.Address{}, ErrOrphanMessage
	}
	fork := announceSpongos.Fork()

	var unsubKey [message.UnsubscribeKeySize]byte
	if _, err := rand.Read(unsubKey[:]); err != nil {
		return message.Address{}, err
	}

	subscriber := u.identity.Identifier()
	seq := u.nextSequence(u.baseTopic, subscriber)
	linked := u.announceMsgID
	hdf := message.NewHDF(message.TypeSubscribe, u.baseTopic.Hash(), subscriber, seq)
	hdf.LinkedMsgID = &linked

	contentSize := message.SizeofPCFHeader() + message.SizeofSubscribe(u.identity)
	addr, err := u.finalizeSend(ctx, u.baseTopic, hdf, fork, contentSize, func(contentCtx *ddml.WrapContext, prevState *spongos.Spongos) error {
		return message.WrapSubscribe(contentCtx, prevState, u.identity, u.authorExchangePub, unsubKey)
	}, true, false)
	if err != nil {
		return message.Address{}, err
	}
	u.subscribeMsgID = addr.MsgID
	u.haveSubscribeMsgID = true
	u.ownUnsubscribeKey = unsubKey
	return addr, nil
}

// Unsubscribe sends the capability minted by Subscribe to revoke this
// user's own membership.
func (u *User) Unsubscribe(ctx context.Context) (message.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.identity == nil {
		return message.Address{}, ErrNoIdentity
	}
	if !u.haveSubscribeMsgID {
		return message.Address{}, ErrUnknownBranch
	}
	subscribeSpongos, ok := u.lookupSpongos(u.subscribeMsgID)
	if !ok {
		return message.Address{}, ErrOrphanMessage
	}
	fork := subscribeSpongos.Fork()

	subscriber := u.identity.Identifier()
	seq := u.nextSequence(u.baseTopic, subscriber)
	linked := u.subscribeMsgID
	hdf := message.NewHDF(message.TypeUnsubscribe, u.baseTopic.Hash(), subscriber, seq)
	hdf.LinkedMsgID = &linked

	contentSize := message.SizeofPCFHeader() + message.SizeofUnsubscribe(u.identity)
	return u.finalizeSend(ctx, u.baseTopic, hdf, fork, contentSize, func(contentCtx *ddml.WrapContext, prevState *spongos.Spongos) error {
		return message.WrapUnsubscribe(contentCtx, prevState, u.identity, u.ownUnsubscribeKey)
	}, true, false)
}
