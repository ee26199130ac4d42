package spongos

import (
	"crypto/subtle"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Spongos is a duplex sponge state: an outer (rate) region that absorb,
// squeeze, encrypt and decrypt all operate on, an inner (capacity) region
// that only the permutation touches, and a cursor pos into the outer
// region. pos == 0 if and only if the state is committed.
type Spongos struct {
	outer [Rate]byte
	inner [Capacity]byte
	pos int
	f Permutation
}

// New creates a zero-initialized, committed Spongos using the default
// permutation.
func New() *Spongos {
	return NewWithPermutation(DefaultPermutation)
}

// NewWithPermutation creates a zero-initialized Spongos over an explicit
// permutation, useful for tests that need a deterministic non-default F.
func NewWithPermutation(f Permutation) *Spongos {
	return &Spongos{f: f}
}

// IsCommitted reports whether pos == 0.
func (s *Spongos) IsCommitted() bool {
	return s.pos == 0
}

// permute runs the full Width-byte state through F and resets pos.
func (s *Spongos) permute() {
	var state [Width]byte
	copy(state[:Rate], s.outer[:])
	copy(state[Rate:], s.inner[:])
	s.f.Permute(state[:])
	copy(s.outer[:], state[:Rate])
	copy(s.inner[:], state[Rate:])
	s.pos = 0
}

// update advances pos by n and commits when the outer region is full.
func (s *Spongos) update(n int) {
	s.pos += n
	if s.pos == Rate {
		s.commitDirty()
	}
}

// commitDirty zeroes the unused tail of the outer region and permutes,
// unconditionally (caller has already verified pos > 0 or pos == Rate).
func (s *Spongos) commitDirty() {
	for i := s.pos; i < Rate; i++ {
		s.outer[i] = 0
	}
	s.permute()
}

// Commit forces a transform if the state is dirty (pos > 0). Idempotent
// on an already-committed state.
func (s *Spongos) Commit() {
	if s.pos != 0 {
		s.commitDirty()
	}
}

// chunk returns the next slice of the outer region available to absorb
// into / squeeze out of, capped at n bytes and at the rate boundary.
func (s *Spongos) chunk(n int) []byte {
	end := s.pos + n
	if end > Rate {
		end = Rate
	}
	return s.outer[s.pos:end]
}

// Absorb XORs data into the outer region, permuting and wrapping around
// as needed. Matches original_source/spongos/src/core/spongos.rs absorb.
func (s *Spongos) Absorb(data []byte) {
	for len(data) > 0 {
		dst := s.chunk(len(data))
		n := len(dst)
		for i := range dst {
			dst[i] ^= data[i]
		}
		data = data[n:]
		s.update(n)
	}
}

// Squeeze copies n bytes out of the outer region, zeroing them as it goes,
// and returns them. Partition-invariant: Squeeze(n) equals the
// concatenation of any split of n across multiple calls, because chunk
// boundaries never depend on call count.
func (s *Spongos) Squeeze(n int) []byte {
	out := make([]byte, n)
	s.SqueezeInto(out)
	return out
}

// SqueezeInto squeezes len(out) bytes into the provided buffer.
func (s *Spongos) SqueezeInto(out []byte) {
	for len(out) > 0 {
		src := s.chunk(len(out))
		n := len(src)
		copy(out[:n], src)
		for i := range src {
			src[i] = 0
		}
		out = out[n:]
		s.update(n)
	}
}

// SqueezeEq squeezes len(expected) bytes and compares them to expected in
// constant time, consuming exactly as much state as a normal squeeze of
// the same length.
func (s *Spongos) SqueezeEq(expected []byte) bool {
	got := s.Squeeze(len(expected))
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// Encrypt XORs plain against the outer region, writes the ciphertext back
// into the outer region (so later squeezes/joins reflect it), and returns
// the ciphertext. plain and the returned slice never alias.
func (s *Spongos) Encrypt(plain []byte) []byte {
	cipher := make([]byte, len(plain))
	s.EncryptInto(plain, cipher)
	return cipher
}

// EncryptInto is the non-allocating form of Encrypt.
func (s *Spongos) EncryptInto(plain, cipher []byte) {
	if len(plain) != len(cipher) {
		panic(fmt.Sprintf("spongos: encrypt length mismatch: plain=%d cipher=%d", len(plain), len(cipher)))
	}
	for len(plain) > 0 {
		dst := s.chunk(len(plain))
		n := len(dst)
		for i := 0; i < n; i++ {
			c := dst[i] ^ plain[i]
			cipher[i] = c
			dst[i] = c
		}
		plain = plain[n:]
		cipher = cipher[n:]
		s.update(n)
	}
}

// Decrypt is the inverse of Encrypt: it XORs cipher against the outer
// region to recover plain, and writes cipher back into the outer region
// unchanged (so wrap/unwrap end in the same state).
func (s *Spongos) Decrypt(cipher []byte) []byte {
	plain := make([]byte, len(cipher))
	s.DecryptInto(cipher, plain)
	return plain
}

// DecryptInto is the non-allocating form of Decrypt.
func (s *Spongos) DecryptInto(cipher, plain []byte) {
	if len(plain) != len(cipher) {
		panic(fmt.Sprintf("spongos: decrypt length mismatch: cipher=%d plain=%d", len(cipher), len(plain)))
	}
	for len(cipher) > 0 {
		dst := s.chunk(len(cipher))
		n := len(dst)
		for i := 0; i < n; i++ {
			p := dst[i] ^ cipher[i]
			plain[i] = p
			dst[i] = cipher[i]
		}
		cipher = cipher[n:]
		plain = plain[n:]
		s.update(n)
	}
}

// Fork clones the current state (both regions and pos). The caller must
// discard the fork rather than merging it back into self — forks are
// single-use by design.
func (s *Spongos) Fork() *Spongos {
	clone := *s
	return &clone
}

// Join absorbs a capacity-sized squeeze from other into self. other is
// committed, its outer region is zeroed, and it is transformed once more
// before the squeeze - this makes join behave identically whether other
// was a full or capacity-only ("trimmed") spongos.
func (s *Spongos) Join(other *Spongos) {
	logrus.WithFields(logFields("join")).Debug("joining forked spongos state")
	other.Commit()
	for i := range other.outer {
		other.outer[i] = 0
	}
	other.permute()
	s.Absorb(other.Squeeze(Capacity))
}

// ExportedSize is the width of the byte form Export/Import round-trip.
const ExportedSize = Width + 1

// Export serializes s's full state (outer, inner, pos) for persistence
// across restarts (per-branch committed spongos blobs). Callers
// that only ever export committed states (pos == 0) still get a
// self-contained round trip either way.
func (s *Spongos) Export() []byte {
	out := make([]byte, ExportedSize)
	copy(out, s.outer[:])
	copy(out[Rate:], s.inner[:])
	out[Width] = byte(s.pos)
	return out
}

// ImportSpongos reconstructs a Spongos from the form Export produces,
// using the default permutation.
func ImportSpongos(data []byte) (*Spongos, error) {
	if len(data) != ExportedSize {
		return nil, fmt.Errorf("spongos: import: want %d bytes, got %d", ExportedSize, len(data))
	}
	s := NewWithPermutation(DefaultPermutation)
	copy(s.outer[:], data[:Rate])
	copy(s.inner[:], data[Rate:Width])
	s.pos = int(data[Width])
	if s.pos < 0 || s.pos > Rate {
		return nil, fmt.Errorf("spongos: import: invalid cursor position %d", s.pos)
	}
	return s, nil
}

// Clone returns a deep copy of s, unrelated to Fork's single-use contract
// (Clone is for callers that genuinely want an independent, mergeable
// copy - e.g. caching a committed spongos against a message ID).
func (s *Spongos) Clone() *Spongos {
	clone := *s
	return &clone
}

// logFields is the standard structured-logging context for this package.
func logFields(op string) logrus.Fields {
	return logrus.Fields{"package": "spongos", "operation": op}
}
