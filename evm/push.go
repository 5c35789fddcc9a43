package evm

import "github.com/holiman/uint256"

// ImmediateWidth returns the number of bytes needed to encode the value as a
// push immediate. Zero encodes as PUSH0 with no immediate.
func ImmediateWidth(v *uint256.Int) int {
	return (v.BitLen() + 7) / 8
}

// OffsetWidth returns the number of immediate bytes needed to encode a byte
// offset. Offset zero still takes one byte, since a JUMPDEST at offset zero
// must be pushed as PUSH1 0x00 rather than PUSH0 to remain a valid jump
// destination argument on pre-Shanghai chains.
func OffsetWidth(offset int) int {
	width := 1
	for v := offset >> 8; v > 0; v >>= 8 {
		width++
	}
	return width
}

// EncodePush appends the shortest push instruction for the value to dst.
func EncodePush(dst []byte, v *uint256.Int) []byte {
	width := ImmediateWidth(v)
	dst = append(dst, byte(PushFor(width)))
	if width > 0 {
		buf := v.Bytes32()
		dst = append(dst, buf[32-width:]...)
	}
	return dst
}

// EncodeOffsetPush appends a push of the given byte offset using exactly
// width immediate bytes, big endian.
func EncodeOffsetPush(dst []byte, offset, width int) []byte {
	dst = append(dst, byte(PushFor(width)))
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, byte(offset>>(8*i)))
	}
	return dst
}
