// Package f16 implements IEEE-754 binary16 (half precision) as a storage
// format. Arithmetic always happens in float32; Bits only moves values in and
// out of packed buffers.
package f16

import (
	"encoding/binary"
	"math"
)

// Bits is the raw binary16 bit-pattern.
//
//	sign: 1 bit
//	exp:  5 bits (bias 15)
//	frac: 10 bits
type Bits uint16

// Size is the encoded size of Bits in bytes.
const Size = 2

const (
	signMask Bits = 0x8000
	expMask  Bits = 0x7C00
	fracMask Bits = 0x03FF

	f32SignMask uint32 = 0x80000000
	f32ExpMask  uint32 = 0x7F800000
	f32FracMask uint32 = 0x007FFFFF

	// MaxValue is the largest finite binary16 value.
	MaxValue = 65504
)

// Float32 widens h to float32. The conversion is exact.
func (h Bits) Float32() float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&expMask) >> 10
	frac := uint32(h & fracMask)

	switch {
	case exp == 0x1F:
		return math.Float32frombits(sign | f32ExpMask | frac<<13)
	case exp != 0:
		return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
	case frac == 0:
		return math.Float32frombits(sign)
	}

	// Subnormal: shift the fraction up until the implicit bit appears.
	e := uint32(113)
	for frac&0x0400 == 0 {
		frac <<= 1
		e--
	}
	return math.Float32frombits(sign | e<<23 | (frac&uint32(fracMask))<<13)
}

// IsNaN reports whether h encodes a NaN.
func (h Bits) IsNaN() bool {
	return h&expMask == expMask && h&fracMask != 0
}

// IsInf reports whether h encodes an infinity of either sign.
func (h Bits) IsInf() bool {
	return h&^signMask == expMask
}

// FromFloat32 narrows f to binary16 using round-to-nearest, ties-to-even.
// Values beyond MaxValue become infinities; float32 subnormals flush to a
// signed zero.
func FromFloat32(f float32) Bits {
	b := math.Float32bits(f)
	sign := Bits(b>>16) & signMask
	exp := int32(b&f32ExpMask) >> 23
	frac := b & f32FracMask

	if exp == 0xFF {
		if frac == 0 {
			return sign | expMask
		}
		// Keep the top of the payload and force a quiet NaN.
		return sign | expMask | 0x0200 | Bits(frac>>13)&fracMask
	}
	if exp == 0 {
		return sign
	}

	e := exp - 112
	if e >= 0x1F {
		return sign | expMask
	}

	if e <= 0 {
		if e < -10 {
			return sign
		}
		m := frac | 0x00800000
		shift := uint32(14 - e)
		return sign | Bits(roundShift(m, shift))
	}

	// The carry out of the mantissa naturally bumps the exponent, and a carry
	// out of the largest exponent lands exactly on infinity.
	return sign | Bits(uint32(e)<<10+roundShift(frac, 13))
}

// roundShift returns v >> shift rounded to nearest, ties to even.
func roundShift(v, shift uint32) uint32 {
	q := v >> shift
	rem := v & (1<<shift - 1)
	half := uint32(1) << (shift - 1)
	if rem > half || (rem == half && q&1 == 1) {
		q++
	}
	return q
}

// Round returns f rounded through binary16 and widened back to float32.
func Round(f float32) float32 {
	return FromFloat32(f).Float32()
}

// Decode widens src into dst. dst must have length >= len(src).
func Decode(dst []float32, src []Bits) {
	dst = dst[:len(src)]
	for i, h := range src {
		dst[i] = h.Float32()
	}
}

// Encode narrows src into dst. dst must have length >= len(src).
func Encode(dst []Bits, src []float32) {
	dst = dst[:len(src)]
	for i, f := range src {
		dst[i] = FromFloat32(f)
	}
}

// Get reads a little-endian binary16 value from the first two bytes of b.
func Get(b []byte) Bits {
	return Bits(binary.LittleEndian.Uint16(b))
}

// Put writes h little-endian into the first two bytes of b.
func Put(b []byte, h Bits) {
	binary.LittleEndian.PutUint16(b, uint16(h))
}
