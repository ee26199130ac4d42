// Package id implements the participant identity model: Identifier, the
// closed sum of the three ways a participant can be named on the wire
// (an Ed25519 public key, a pre-shared-key id, or a DID method id), and
// Identity, the corresponding secret-holding counterpart that can sign
// and decrypt.
//
// Both are implemented as closed tagged sums rather than interfaces or
// open polymorphism: the wire tag and the Go variant are meant to be
// exhaustive and 1:1, so a switch over the Kind field is always safe
// without a default case silently swallowing a future variant.
package id
