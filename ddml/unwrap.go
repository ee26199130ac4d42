package ddml

import (
	"github.com/opd-ai/weave/spongos"
)

// UnwrapContext owns an input byte cursor and a spongos; every primitive
// parses bytes off the input, threads them through the spongos (except
// Skip/ReadRaw), and advances the cursor. Decode failures return the
// structured errors defined in errors.go.
type UnwrapContext struct {
	in []byte
	pos int
	s *spongos.Spongos
}

// NewUnwrapContext starts an unwrap pass over buf from a fresh,
// committed spongos.
func NewUnwrapContext(buf []byte) *UnwrapContext {
	return &UnwrapContext{in: buf, s: spongos.New()}
}

// NewUnwrapContextFrom starts an unwrap pass from a caller-supplied
// spongos, mirroring NewWrapContextFrom.
func NewUnwrapContextFrom(buf []byte, s *spongos.Spongos) *UnwrapContext {
	return &UnwrapContext{in: buf, s: s}
}

// Spongos exposes the underlying duplex state.
func (c *UnwrapContext) Spongos() *spongos.Spongos {
	return c.s
}

// Remaining returns the number of unconsumed input bytes.
func (c *UnwrapContext) Remaining() int {
	return len(c.in) - c.pos
}

// Rest returns the unconsumed tail of the input, for callers that parse
// one wire segment (e.g. HDF) from the front of a buffer and need to
// hand the remainder to a second, independent context (e.g. PCF
// immediately followed by content, with no separator).
func (c *UnwrapContext) Rest() []byte {
	return c.in[c.pos:]
}

func (c *UnwrapContext) take(n int) ([]byte, error) {
	if c.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := c.in[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// AbsorbUint8 reads one byte, absorbs it, and returns it.
func (c *UnwrapContext) AbsorbUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	c.s.Absorb(b)
	return b[0], nil
}

// AbsorbSize reads a size-prefixed varint and absorbs its bytes.
func (c *UnwrapContext) AbsorbSize() (uint64, error) {
	v, n, err := DecodeSize(c.in[c.pos:])
	if err != nil {
		return 0, err
	}
	raw, err := c.take(n)
	if err != nil {
		return 0, err
	}
	c.s.Absorb(raw)
	return v, nil
}

// AbsorbFixed reads exactly n raw bytes and absorbs them.
func (c *UnwrapContext) AbsorbFixed(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	c.s.Absorb(b)
	return append([]byte(nil), b...), nil
}

// AbsorbVar reads a size-prefixed byte string and absorbs it whole.
func (c *UnwrapContext) AbsorbVar() ([]byte, error) {
	n, err := c.AbsorbSize()
	if err != nil {
		return nil, err
	}
	return c.AbsorbFixed(int(n))
}

// AbsorbExternalFixed mixes b into the spongos without reading anything
// off the wire - the unwrap-side counterpart of
// WrapContext.AbsorbExternalFixed, used once the caller has
// recomputed the same external value locally (an ECDH shared secret, a
// PSK).
func (c *UnwrapContext) AbsorbExternalFixed(b []byte) error {
	c.s.Absorb(b)
	return nil
}

// MaskUint8 reads one ciphertext byte and decrypts it through the
// spongos.
func (c *UnwrapContext) MaskUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	plain := c.s.Decrypt(b)
	return plain[0], nil
}

// MaskSize decrypts a size-prefixed varint. Since the varint's own byte
// count is not known until decrypted, the ciphertext is consumed one
// byte at a time: first the count byte, then exactly that many digits.
func (c *UnwrapContext) MaskSize() (uint64, error) {
	countCipher, err := c.take(1)
	if err != nil {
		return 0, err
	}
	countPlain := c.s.Decrypt(countCipher)
	count := int(countPlain[0])
	if count > 8 {
		return 0, ErrSizeOverflow
	}
	if count == 0 {
		return 0, nil
	}
	digitsCipher, err := c.take(count)
	if err != nil {
		return 0, err
	}
	digits := c.s.Decrypt(digitsCipher)
	if digits[0] == 0 {
		return 0, ErrNonMinimalSize
	}
	var v uint64
	for _, b := range digits {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// MaskFixed decrypts exactly n ciphertext bytes with no length prefix.
func (c *UnwrapContext) MaskFixed(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return c.s.Decrypt(b), nil
}

// MaskVar reads the plaintext size then decrypts that many bytes.
func (c *UnwrapContext) MaskVar() ([]byte, error) {
	n, err := c.AbsorbSize()
	if err != nil {
		return nil, err
	}
	return c.MaskFixed(int(n))
}

// SkipUint8 reads one byte without touching the spongos.
func (c *UnwrapContext) SkipUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// SkipFixed reads n bytes without touching the spongos.
func (c *UnwrapContext) SkipFixed(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// SkipVar reads a size-prefixed byte string without touching the
// spongos.
func (c *UnwrapContext) SkipVar() ([]byte, error) {
	n, consumed, err := DecodeSize(c.in[c.pos:])
	if err != nil {
		return nil, err
	}
	if _, err := c.take(consumed); err != nil {
		return nil, err
	}
	return c.SkipFixed(int(n))
}

// Commit forces a spongos transform.
func (c *UnwrapContext) Commit() error {
	c.s.Commit()
	return nil
}

// Join merges branchState into this context's spongos, mirroring
// WrapContext.Join.
func (c *UnwrapContext) Join(branchState *spongos.Spongos) error {
	c.s.Join(branchState)
	return nil
}

// Fork returns a sub-context over the same remaining input but reading
// from the current position, carrying an independent forked spongos.
// Because it shares the same backing array and the returned sub-context
// advances c's own cursor via AdvanceFrom, callers drive the sub-schema
// against sub and then call c.AdvanceFrom(sub) to catch c's cursor up.
func (c *UnwrapContext) Fork() *UnwrapContext {
	return &UnwrapContext{in: c.in, pos: c.pos, s: c.s.Fork()}
}

// AdvanceFrom moves this context's cursor to match a sub-context
// produced by Fork, after the sub-schema has consumed some input.
func (c *UnwrapContext) AdvanceFrom(sub *UnwrapContext) {
	c.pos = sub.pos
}

// Squeeze reads n wire bytes and compares them in constant time against
// a freshly recomputed spongos squeeze, returning ErrMacMismatch on any
// divergence.
func (c *UnwrapContext) Squeeze(n int) error {
	wireMac, err := c.take(n)
	if err != nil {
		return err
	}
	if !c.s.SqueezeEq(wireMac) {
		return ErrMacMismatch
	}
	return nil
}

// SqueezeExternal produces an n-byte value from the spongos without
// reading anything from the wire (the hash fed to signature
// verification).
func (c *UnwrapContext) SqueezeExternal(n int) ([]byte, error) {
	return c.s.Squeeze(n), nil
}

// ReadRaw reads n bytes from the wire without touching the spongos.
func (c *UnwrapContext) ReadRaw(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
