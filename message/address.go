package message

import (
	"encoding/binary"

	"github.com/opd-ai/weave/id"
	"github.com/opd-ai/weave/spongos"
)

// AppAddrSize and MsgIDSize are the recommended 16-byte widths for the
// stream address and per-message address.
const (
	AppAddrSize = 16
	MsgIDSize = 16
)

// AppAddr is the fixed-size stream-level address derived once at stream
// creation.
type AppAddr [AppAddrSize]byte

// MsgID is a message's fixed-size, collision-resistant address.
type MsgID [MsgIDSize]byte

// Address is the transport-level address of a single message.
type Address struct {
	AppAddr AppAddr
	MsgID MsgID
}

// DeriveAppAddr derives an AppAddr from the author's identifier and an
// application nonce, deterministically: same author and nonce
// always yield the same stream address.
func DeriveAppAddr(author id.Identifier, nonce []byte) AppAddr {
	s := spongos.New()
	s.Absorb(author.Bytes())
	s.Absorb(nonce)
	s.Commit()
	var a AppAddr
	copy(a[:], s.Squeeze(AppAddrSize))
	return a
}

// DeriveMsgID derives a MsgID from (AppAddr, publisher, topic, sequence)
// via a spongos-based KDF, tying each message's address to its
// publisher and causal position so that collisions between distinct
// (publisher, topic, sequence) triples are cryptographically infeasible.
func DeriveMsgID(appAddr AppAddr, publisher id.Identifier, topic TopicHash, sequence uint64) MsgID {
	s := spongos.New()
	s.Absorb(appAddr[:])
	s.Absorb(publisher.Bytes())
	s.Absorb(topic[:])
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], sequence)
	s.Absorb(seqBytes[:])
	s.Commit()
	var msgID MsgID
	copy(msgID[:], s.Squeeze(MsgIDSize))
	return msgID
}
