package weave

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/opd-ai/weave/ddml"
	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/message"
	"github.com/opd-ai/weave/spongos"
)

// Save format constants, following crypto/keystore.go's
// EncryptedKeyStore: PBKDF2-derived AES-256-GCM, a version prefix so
// older formats can be rejected outright on import. Unlike a file-based
// store, a save blob carries its own salt rather than a sibling ".salt"
// file, since this is a byte-slice API with no directory to keep one in.
const (
	saveFormatVersion = 1
	pbkdf2Iterations = 100000
	saveSaltSize = 32
)

// persistedIdentity shadows id.Identity's unexported key material with
// JSON-serializable fields (id.Identity.Export's return shape).
type persistedIdentity struct {
	Kind id.IdentityKind
	SigningPriv []byte
	ExchangePriv [32]byte
	DID id.DIDInfo
}

// persistedBranch captures one topic's admin-of-record and current tip,
// the parts of state.BranchStore a CursorEntry snapshot does not carry.
type persistedBranch struct {
	Topic message.Topic
	Admin []byte
	LatestLink message.MsgID
	HasLink bool
}

// persistedCursor is one state.CursorEntry, with its Permission encoded
// via id.Permission.Wrap rather than left as an unexported-field struct.
type persistedCursor struct {
	Topic message.Topic
	Permission []byte
	Cursor uint64
}

// persistedSpongos is one cache entry: the post-wrap/post-unwrap duplex
// state for a MsgID, the topic it belongs to, and whether this user
// authored it (so lean-mode retention survives a reload).
type persistedSpongos struct {
	MsgID []byte
	Topic message.Topic
	Self bool
	State []byte
}

type persistedTopicHash struct {
	Hash message.TopicHash
	Topic message.Topic
}

type persistedSubscription struct {
	Identifier []byte
	UnsubscribeKey [message.UnsubscribeKeySize]byte
}

// persistedState is the full exportable shape of a User - identity, PSK
// table, branch store, the full state of every cached spongos - the
// JSON-friendly analogue of toxcore.go's SaveData.
type persistedState struct {
	Version int

	Identity *persistedIdentity
	PSKs []id.PSK
	Lean bool

	AppAddr message.AppAddr
	BaseTopic message.Topic
	HaveStream bool
	AuthorIdentifier []byte
	AuthorExchangePub [32]byte

	TopicHashes []persistedTopicHash
	Branches []persistedBranch
	Cursors []persistedCursor
	ContentKeys map[message.Topic][32]byte

	Cache []persistedSpongos
	Subscriptions []persistedSubscription

	AnnounceMsgID message.MsgID
	SubscribeMsgID message.MsgID
	HaveSubscribeMsgID bool
	OwnUnsubscribeKey [message.UnsubscribeKeySize]byte
}

func encodeIdentifier(identifier id.Identifier) ([]byte, error) {
	ctx := ddml.NewWrapContext()
	if err := identifier.AbsorbTagged(ctx); err != nil {
		return nil, err
	}
	return ctx.Bytes(), nil
}

func decodeIdentifier(b []byte) (id.Identifier, error) {
	return id.UnabsorbTagged(ddml.NewUnwrapContext(b))
}

func encodePermission(p id.Permission) ([]byte, error) {
	ctx := ddml.NewWrapContext()
	if err := p.Wrap(ctx); err != nil {
		return nil, err
	}
	return ctx.Bytes(), nil
}

func decodePermission(b []byte) (id.Permission, error) {
	return id.UnwrapPermission(ddml.NewUnwrapContext(b))
}

// snapshot builds the JSON-able view of u's full state. Caller must hold
// u.mu.
func (u *User) snapshot() (*persistedState, error) {
	ps := &persistedState{
		Version: saveFormatVersion,
		Lean: u.lean,
		AppAddr: u.appAddr,
		BaseTopic: u.baseTopic,
		HaveStream: u.haveStream,
		AuthorExchangePub: u.authorExchangePub,
		ContentKeys: u.contentKeys,
		AnnounceMsgID: u.announceMsgID,
		SubscribeMsgID: u.subscribeMsgID,
		HaveSubscribeMsgID: u.haveSubscribeMsgID,
		OwnUnsubscribeKey: u.ownUnsubscribeKey,
	}

	if u.identity != nil {
		exp := u.identity.Export()
		ps.Identity = &persistedIdentity{
			Kind: exp.Kind,
			SigningPriv: []byte(exp.SigningPriv),
			ExchangePriv: exp.ExchangePriv,
			DID: exp.DID,
		}
	}
	ps.PSKs = u.psks.All()

	authorBytes, err := encodeIdentifier(u.authorIdentifier)
	if err != nil {
		return nil, err
	}
	ps.AuthorIdentifier = authorBytes

	for hash, topic := range u.topicsByHash {
		ps.TopicHashes = append(ps.TopicHashes, persistedTopicHash{Hash: hash, Topic: topic})
	}

	topics := make(map[message.Topic]struct{}, len(u.topicsByHash))
	for _, topic := range u.topicsByHash {
		topics[topic] = struct{}{}
	}
	for topic := range u.branchAdmin {
		topics[topic] = struct{}{}
	}
	for topic := range topics {
		admin := u.branchAdmin[topic]
		adminBytes, err := encodeIdentifier(admin)
		if err != nil {
			return nil, err
		}
		latest, hasLink := u.branches.GetLatestLink(topic)
		ps.Branches = append(ps.Branches, persistedBranch{
			Topic: topic,
			Admin: adminBytes,
			LatestLink: latest,
			HasLink: hasLink,
		})
	}

	for _, entry := range u.branches.Cursors() {
		permBytes, err := encodePermission(entry.Permission)
		if err != nil {
			return nil, err
		}
		ps.Cursors = append(ps.Cursors, persistedCursor{
			Topic: entry.Topic,
			Permission: permBytes,
			Cursor: entry.Cursor,
		})
	}

	for msgID, s := range u.cache {
		ps.Cache = append(ps.Cache, persistedSpongos{
			MsgID: append([]byte(nil), msgID[:]...),
			Topic: u.msgTopic[msgID],
			Self: u.cacheSelf[msgID],
			State: s.Export(),
		})
	}

	for identifier, record := range u.subscriptions {
		idBytes, err := encodeIdentifier(identifier)
		if err != nil {
			return nil, err
		}
		ps.Subscriptions = append(ps.Subscriptions, persistedSubscription{
			Identifier: idBytes,
			UnsubscribeKey: record.UnsubscribeKey,
		})
	}

	return ps, nil
}

// restore rebuilds u's internal maps from a snapshot. u must already
// have its collaborator fields (transport, resolver, log, empty maps)
// set by New.
func (u *User) restore(ps *persistedState) error {
	if ps.Version != saveFormatVersion {
		return ErrUnsupportedSaveVersion
	}

	if ps.Identity != nil {
		identity, err := id.ImportIdentity(id.ExportedIdentity{
			Kind: ps.Identity.Kind,
			SigningPriv: append([]byte(nil), ps.Identity.SigningPriv...),
			ExchangePriv: ps.Identity.ExchangePriv,
			DID: ps.Identity.DID,
		})
		if err != nil {
			return fmt.Errorf("weave: restoring identity: %w", err)
		}
		u.identity = identity
	}
	for _, psk := range ps.PSKs {
		u.psks.Insert(psk)
	}
	u.lean = ps.Lean
	u.appAddr = ps.AppAddr
	u.baseTopic = ps.BaseTopic
	u.haveStream = ps.HaveStream
	u.authorExchangePub = ps.AuthorExchangePub
	u.announceMsgID = ps.AnnounceMsgID
	u.subscribeMsgID = ps.SubscribeMsgID
	u.haveSubscribeMsgID = ps.HaveSubscribeMsgID
	u.ownUnsubscribeKey = ps.OwnUnsubscribeKey
	if ps.ContentKeys != nil {
		u.contentKeys = ps.ContentKeys
	}

	authorIdentifier, err := decodeIdentifier(ps.AuthorIdentifier)
	if err != nil {
		return fmt.Errorf("weave: restoring author identifier: %w", err)
	}
	u.authorIdentifier = authorIdentifier

	for _, th := range ps.TopicHashes {
		u.topicsByHash[th.Hash] = th.Topic
	}

	for _, branch := range ps.Branches {
		admin, err := decodeIdentifier(branch.Admin)
		if err != nil {
			return fmt.Errorf("weave: restoring branch admin for %q: %w", branch.Topic, err)
		}
		u.branchAdmin[branch.Topic] = admin
		u.branches.NewBranch(branch.Topic)
		if branch.HasLink {
			u.branches.SetLatestLink(branch.Topic, branch.LatestLink)
		}
	}

	for _, c := range ps.Cursors {
		perm, err := decodePermission(c.Permission)
		if err != nil {
			return fmt.Errorf("weave: restoring cursor for %q: %w", c.Topic, err)
		}
		u.branches.InsertCursor(c.Topic, perm, c.Cursor)
	}

	for _, entry := range ps.Cache {
		var msgID message.MsgID
		copy(msgID[:], entry.MsgID)
		s, err := spongos.ImportSpongos(entry.State)
		if err != nil {
			return fmt.Errorf("weave: restoring cached spongos: %w", err)
		}
		u.cache[msgID] = s
		u.msgTopic[msgID] = entry.Topic
		if entry.Self {
			u.cacheSelf[msgID] = true
		}
	}

	for _, sub := range ps.Subscriptions {
		identifier, err := decodeIdentifier(sub.Identifier)
		if err != nil {
			return fmt.Errorf("weave: restoring subscription: %w", err)
		}
		u.subscriptions[identifier] = subscriptionRecord{UnsubscribeKey: sub.UnsubscribeKey}
	}

	return nil
}

func deriveSaveKey(password, salt []byte) [32]byte {
	derived := pbkdf2.Key(password, salt, pbkdf2Iterations, 32, sha256.New)
	var key [32]byte
	copy(key[:], derived)
	return key
}

// Export serializes u's full persistable state (identity, PSK table,
// branch store, per-branch cached spongos) and encrypts it under
// password, following crypto/keystore.go's PBKDF2+AES-256-GCM recipe.
// Blob layout: version(2) || salt(32) || nonce(12) || ciphertext+tag.
func (u *User) Export(password []byte) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(password) == 0 {
		return nil, fmt.Errorf("weave: export password cannot be empty")
	}

	ps, err := u.snapshot()
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(ps)
	if err != nil {
		return nil, fmt.Errorf("weave: marshaling save data: %w", err)
	}

	salt := make([]byte, saveSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("weave: generating salt: %w", err)
	}
	key := deriveSaveKey(password, salt)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("weave: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("weave: creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("weave: generating nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 2+len(salt)+len(nonce)+len(ciphertext))
	binary.BigEndian.PutUint16(out[0:2], saveFormatVersion)
	copy(out[2:2+len(salt)], salt)
	copy(out[2+len(salt):2+len(salt)+len(nonce)], nonce)
	copy(out[2+len(salt)+len(nonce):], ciphertext)
	return out, nil
}

// Import decrypts a blob produced by Export and reconstructs a User
// around it. opts supplies the runtime collaborators Export does not
// serialize (Transport, Resolver) - its Identity and PSKs fields, if
// set, are discarded in favor of the blob's own.
func Import(data, password []byte, opts *Options) (*User, error) {
	if len(data) < 2+saveSaltSize+12 {
		return nil, fmt.Errorf("weave: save blob too short: %d bytes", len(data))
	}
	version := binary.BigEndian.Uint16(data[0:2])
	if version != saveFormatVersion {
		return nil, ErrUnsupportedSaveVersion
	}

	rest := data[2:]
	salt := rest[:saveSaltSize]
	rest = rest[saveSaltSize:]

	key := deriveSaveKey(password, salt)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("weave: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("weave: creating GCM: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, fmt.Errorf("weave: save blob too short for nonce")
	}
	nonce := rest[:nonceSize]
	ciphertext := rest[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("weave: decryption failed (wrong password or corrupted data): %w", err)
	}

	var ps persistedState
	if err := json.Unmarshal(plaintext, &ps); err != nil {
		return nil, fmt.Errorf("weave: unmarshaling save data: %w", err)
	}

	normalized, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	normalized.Identity = nil
	normalized.PSKs = id.NewPSKTable()

	u, err := New(normalized)
	if err != nil {
		return nil, err
	}
	if err := u.restore(&ps); err != nil {
		return nil, err
	}
	return u, nil
}
