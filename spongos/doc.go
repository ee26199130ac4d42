// Package spongos implements the duplex sponge construction that underlies
// every symmetric operation in the protocol: absorb, squeeze, encrypt,
// decrypt, commit, fork, and join.
//
// A Spongos wraps a fixed-width permutation state split into an outer
// ("rate") region and an inner ("capacity") region, plus a cursor position
// within the outer region. Absorb XORs data into the outer region; squeeze
// copies bytes back out (and zeroes them); encrypt/decrypt XOR a byte
// stream against the outer region while also updating it, so the stream
// cipher output feeds back into the state exactly like absorb does. Commit
// runs the permutation once the outer region fills or is forced closed.
//
// Example:
//
//	s := spongos.New()
//	s.Absorb([]byte("a shared secret"))
//	s.Commit()
//	mac := s.Squeeze(32)
package spongos
