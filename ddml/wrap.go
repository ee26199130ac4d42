package ddml

import (
	"github.com/opd-ai/weave/spongos"
)

// WrapContext owns an output byte cursor and a spongos; every primitive
// serializes its argument, appends the bytes to the output, and (except
// for Skip/WriteRaw) threads the bytes through the spongos.
type WrapContext struct {
	out []byte
	s *spongos.Spongos
}

// NewWrapContext starts a wrap pass from a fresh, committed spongos.
func NewWrapContext() *WrapContext {
	return &WrapContext{s: spongos.New()}
}

// NewWrapContextFrom starts a wrap pass from a caller-supplied spongos,
// used when a schema continues an already-running duplex (e.g. a
// SignedPacket wrapped on a fork of the branch's spongos).
func NewWrapContextFrom(s *spongos.Spongos) *WrapContext {
	return &WrapContext{s: s}
}

// Bytes returns the accumulated output.
func (c *WrapContext) Bytes() []byte {
	return c.out
}

// Spongos exposes the underlying duplex state, for callers that need to
// cache it (e.g. against a MsgId) once wrapping completes.
func (c *WrapContext) Spongos() *spongos.Spongos {
	return c.s
}

func (c *WrapContext) append(b []byte) {
	c.out = append(c.out, b...)
}

// AbsorbUint8 serializes v as one byte and absorbs it.
func (c *WrapContext) AbsorbUint8(v uint8) error {
	b := []byte{v}
	c.s.Absorb(b)
	c.append(b)
	return nil
}

// AbsorbSize serializes v as a size-prefixed varint and absorbs it.
func (c *WrapContext) AbsorbSize(v uint64) error {
	b := EncodeSize(v)
	c.s.Absorb(b)
	c.append(b)
	return nil
}

// AbsorbFixed absorbs and writes exactly len(b) raw bytes with no prefix.
func (c *WrapContext) AbsorbFixed(b []byte) error {
	c.s.Absorb(b)
	c.append(b)
	return nil
}

// AbsorbVar absorbs and writes b prefixed with its size.
func (c *WrapContext) AbsorbVar(b []byte) error {
	if err := c.AbsorbSize(uint64(len(b))); err != nil {
		return err
	}
	return c.AbsorbFixed(b)
}

// AbsorbExternalFixed mixes b into the spongos without writing anything
// to the wire - used for key material both sides can recompute locally
// (an ECDH shared secret, a PSK) rather than material that travels with
// the message.
func (c *WrapContext) AbsorbExternalFixed(b []byte) error {
	c.s.Absorb(b)
	return nil
}

// MaskUint8 encrypts v in place through the spongos and writes the
// resulting ciphertext byte.
func (c *WrapContext) MaskUint8(v uint8) error {
	cipher := c.s.Encrypt([]byte{v})
	c.append(cipher)
	return nil
}

// MaskSize encrypts the size-prefixed encoding of v.
func (c *WrapContext) MaskSize(v uint64) error {
	plain := EncodeSize(v)
	cipher := c.s.Encrypt(plain)
	c.append(cipher)
	return nil
}

// MaskFixed encrypts exactly len(b) bytes with no length prefix.
func (c *WrapContext) MaskFixed(b []byte) error {
	cipher := c.s.Encrypt(b)
	c.append(cipher)
	return nil
}

// MaskVar absorbs the plaintext size (sizes are never confidential) then
// encrypts b itself.
func (c *WrapContext) MaskVar(b []byte) error {
	if err := c.AbsorbSize(uint64(len(b))); err != nil {
		return err
	}
	return c.MaskFixed(b)
}

// SkipUint8 writes v without touching the spongos.
func (c *WrapContext) SkipUint8(v uint8) error {
	c.append([]byte{v})
	return nil
}

// SkipFixed writes b without touching the spongos.
func (c *WrapContext) SkipFixed(b []byte) error {
	c.append(b)
	return nil
}

// SkipVar writes a size-prefixed b without touching the spongos.
func (c *WrapContext) SkipVar(b []byte) error {
	c.append(EncodeSize(uint64(len(b))))
	c.append(b)
	return nil
}

// Commit forces a spongos transform.
func (c *WrapContext) Commit() error {
	c.s.Commit()
	return nil
}

// Join merges branchState into this context's spongos, so the remainder
// of the schema proceeds from the joined state: the context's own
// spongos plays the role of both "current" and "self" here, since a
// wrap schema always starts from an independent spongos of its own.
func (c *WrapContext) Join(branchState *spongos.Spongos) error {
	c.s.Join(branchState)
	return nil
}

// Fork returns a sub-context carrying an independent forked spongos and
// its own output buffer. The caller must discard the fork's spongos
// when done and never merge it back; MergeFrom only appends the
// sub-context's written bytes onto the outer wire stream.
func (c *WrapContext) Fork() *WrapContext {
	return &WrapContext{s: c.s.Fork()}
}

// MergeFrom appends a forked sub-context's written bytes onto this
// context's output stream. The outer context's spongos is untouched.
func (c *WrapContext) MergeFrom(sub *WrapContext) {
	c.out = append(c.out, sub.out...)
}

// Squeeze produces an n-byte MAC from the spongos and writes it to the
// wire.
func (c *WrapContext) Squeeze(n int) ([]byte, error) {
	mac := c.s.Squeeze(n)
	c.append(mac)
	return mac, nil
}

// SqueezeExternal produces an n-byte value from the spongos without
// writing it to the wire (used as the hash fed to sign/verify).
func (c *WrapContext) SqueezeExternal(n int) ([]byte, error) {
	return c.s.Squeeze(n), nil
}

// WriteRaw appends b to the wire without touching the spongos - used for
// bytes sealed through a one-off side-channel spongos (content-key
// ciphertext in keyload) or a detached signature.
func (c *WrapContext) WriteRaw(b []byte) error {
	c.append(b)
	return nil
}
