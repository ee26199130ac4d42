package spongos

import (
	"golang.org/x/crypto/sha3"
)

// Rate is the size in bytes of the outer (rate) region of the sponge state.
const Rate = 64

// Capacity is the size in bytes of the inner (capacity) region of the
// sponge state. A join absorbs exactly Capacity bytes squeezed from the
// joined spongos, and the keyload content key is Capacity bytes wide.
const Capacity = 32

// Width is the total size of the permutation state.
const Width = Rate + Capacity

// Permutation is the black-box keyed permutation F. It is
// the single external collaborator of this package: Spongos never inspects
// its internals, only that Permute is deterministic for a given state.
type Permutation interface {
	// Permute transforms state in place. len(state) is always Width.
	Permute(state []byte)
}

// shakePermutation instantiates F by running the full state through a
// fresh SHAKE256 extendable-output function: absorb the state, then
// squeeze Width bytes back out. A new hash.Hash is created per call, so
// the "cannot Write after Read" restriction of Go's streaming XOF never
// applies here — each transform is a single write-then-read-once shot.
type shakePermutation struct{}

// DefaultPermutation is the permutation used when a Spongos is created via
// New. It is a package-level value so callers needing determinism across
// runs never need to construct their own.
var DefaultPermutation Permutation = shakePermutation{}

func (shakePermutation) Permute(state []byte) {
	h := sha3.NewShake256()
	h.Write(state)
	h.Read(state)
}
