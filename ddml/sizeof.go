package ddml

// SizeofContext accumulates the exact byte count a schema will occupy on
// the wire. It performs no I/O and touches no spongos: every
// primitive here only ever grows n.
type SizeofContext struct {
	n int
}

// NewSizeofContext returns an empty sizeof pass.
func NewSizeofContext() *SizeofContext {
	return &SizeofContext{}
}

// Size returns the accumulated byte count.
func (c *SizeofContext) Size() int {
	return c.n
}

// AbsorbUint8 and the rest of the Absorb family count the serialized
// form of x; sizeof never distinguishes absorb from mask from skip,
// since all three have identical wire width and only wrap/unwrap differ
// in whether the spongos is touched.
func (c *SizeofContext) AbsorbUint8(v uint8) error {
	c.n++
	return nil
}

// AbsorbSize counts a size-prefixed varint encoding of v.
func (c *SizeofContext) AbsorbSize(v uint64) error {
	c.n += SizeOfSize(v)
	return nil
}

// AbsorbFixed counts n raw bytes with no length prefix.
func (c *SizeofContext) AbsorbFixed(n int) error {
	c.n += n
	return nil
}

// AbsorbVar counts a size-prefixed variable-length byte string of n bytes.
func (c *SizeofContext) AbsorbVar(n int) error {
	c.n += SizeOfSize(uint64(n)) + n
	return nil
}

// MaskUint8 has identical wire width to AbsorbUint8.
func (c *SizeofContext) MaskUint8(v uint8) error { return c.AbsorbUint8(v) }

// MaskSize has identical wire width to AbsorbSize.
func (c *SizeofContext) MaskSize(v uint64) error { return c.AbsorbSize(v) }

// MaskFixed has identical wire width to AbsorbFixed.
func (c *SizeofContext) MaskFixed(n int) error { return c.AbsorbFixed(n) }

// MaskVar has identical wire width to AbsorbVar.
func (c *SizeofContext) MaskVar(n int) error { return c.AbsorbVar(n) }

// SkipUint8 has identical wire width to AbsorbUint8.
func (c *SizeofContext) SkipUint8(v uint8) error { return c.AbsorbUint8(v) }

// SkipFixed has identical wire width to AbsorbFixed.
func (c *SizeofContext) SkipFixed(n int) error { return c.AbsorbFixed(n) }

// SkipVar has identical wire width to AbsorbVar.
func (c *SizeofContext) SkipVar(n int) error { return c.AbsorbVar(n) }

// Commit is a no-op: sizeof owns no spongos to commit.
func (c *SizeofContext) Commit() error { return nil }

// Join is a no-op: sizeof owns no spongos to join.
func (c *SizeofContext) Join() error { return nil }

// Squeeze counts n on-wire MAC bytes.
func (c *SizeofContext) Squeeze(n int) error {
	c.n += n
	return nil
}

// SqueezeExternal counts for nothing: an external squeeze never appears
// on the wire.
func (c *SizeofContext) SqueezeExternal(n int) error { return nil }

// WriteRaw counts n bytes written outside the main spongos stream (the
// sealed-content-key ciphertext in keyload, or a trailing signature).
func (c *SizeofContext) WriteRaw(n int) error {
	c.n += n
	return nil
}
