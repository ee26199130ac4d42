package ddml

// EncodeSize serializes v as a size-prefixed varint: a leading byte-count
// byte followed by that many big-endian digit bytes, with no leading
// zero digit ("size-prefixed integer"). v == 0 encodes as a
// single zero byte-count with no digits.
func EncodeSize(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte(v & 0xff)}, digits...)
		v >>= 8
	}
	return append([]byte{byte(len(digits))}, digits...)
}

// SizeOfSize returns len(EncodeSize(v)) without allocating.
func SizeOfSize(v uint64) int {
	if v == 0 {
		return 1
	}
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	return 1 + n
}

// DecodeSize parses a size-prefixed varint from the front of buf,
// returning the value and the number of bytes consumed. It rejects
// non-minimal encodings (a nonzero byte count whose leading digit is
// zero) and byte counts too large for a uint64.
func DecodeSize(buf []byte) (uint64, int, error) {
	if len(buf) < 1 {
		return 0, 0, ErrShortBuffer
	}
	count := int(buf[0])
	if count > 8 {
		return 0, 0, ErrSizeOverflow
	}
	if count == 0 {
		return 0, 1, nil
	}
	if len(buf) < 1+count {
		return 0, 0, ErrShortBuffer
	}
	digits := buf[1 : 1+count]
	if digits[0] == 0 {
		return 0, 0, ErrNonMinimalSize
	}
	var v uint64
	for _, b := range digits {
		v = v<<8 | uint64(b)
	}
	return v, 1 + count, nil
}
