package message

import "github.com/opd-ai/weave/spongos"

// TopicHashSize is the recommended 16-byte width of a topic digest.
const TopicHashSize = 16

// Topic is a UTF-8 label naming a branch.
type Topic string

// TopicHash is the fixed-size digest of a Topic that appears in message
// headers.
type TopicHash [TopicHashSize]byte

// Hash derives t's fixed-size digest via a spongos absorb+squeeze.
func (t Topic) Hash() TopicHash {
	s := spongos.New()
	s.Absorb([]byte(t))
	s.Commit()
	var h TopicHash
	copy(h[:], s.Squeeze(TopicHashSize))
	return h
}
