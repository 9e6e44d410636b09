// Package hfp8 implements hybrid 8-bit floating point (HFP8) codes.
//
// An HFP8 code is one byte: a sign bit, EBits exponent bits and 7-EBits
// mantissa bits. The exponent bias and the largest encodable magnitude are
// parameters of the Format, so the same code path serves e4m3- and
// e5m2-style layouts with arbitrary biases. Codes carry no metadata and are
// decoded element by element.
//
// Encoding rounds to nearest-even; magnitudes above MaxPos saturate to MaxPos
// and magnitudes below the smallest normal use gradual underflow.
package hfp8

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFormat is returned for exponent widths or biases that cannot
// describe an 8-bit float.
var ErrInvalidFormat = errors.New("hfp8: invalid format")

const (
	f32Sign    uint32 = 0x80000000
	f32ExpBias        = 127
)

// Format describes an HFP8 layout.
type Format struct {
	EBits        int
	ExponentBias int
	MaxPos       float32
}

// Predefined formats used by FP8 rowwise quantization.
var (
	// Forward is the activation format (1-4-3, bias 15).
	Forward = Format{EBits: 4, ExponentBias: 15, MaxPos: 0.9375}
	// Backward is the gradient format (1-5-2, bias 31).
	Backward = Format{EBits: 5, ExponentBias: 31, MaxPos: 0.875}
)

// NewFormat validates and returns a Format.
func NewFormat(ebits, exponentBias int, maxPos float32) (Format, error) {
	f := Format{EBits: ebits, ExponentBias: exponentBias, MaxPos: maxPos}
	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// Validate checks that f describes a usable 8-bit float whose saturation
// point MaxPos is encodable, i.e. at most Largest().
func (f Format) Validate() error {
	if err := validateLayout(f.EBits, f.ExponentBias); err != nil {
		return err
	}
	if !(f.MaxPos > 0) || math.IsInf(float64(f.MaxPos), 1) {
		return fmt.Errorf("%w: max_pos %v must be positive and finite", ErrInvalidFormat, f.MaxPos)
	}
	if largest := f.Largest(); f.MaxPos > largest {
		return fmt.Errorf("%w: max_pos %v exceeds the largest encodable value %v", ErrInvalidFormat, f.MaxPos, largest)
	}
	return nil
}

// ValidateLayout checks EBits and ExponentBias only, which is all decoding
// needs.
func (f Format) ValidateLayout() error {
	return validateLayout(f.EBits, f.ExponentBias)
}

func validateLayout(ebits, exponentBias int) error {
	if ebits <= 0 || ebits > 7 {
		return fmt.Errorf("%w: ebits %d not in [1, 7]", ErrInvalidFormat, ebits)
	}
	if exponentBias <= 0 || exponentBias > f32ExpBias {
		return fmt.Errorf("%w: exponent bias %d not in [1, %d]", ErrInvalidFormat, exponentBias, f32ExpBias)
	}
	return nil
}

// MantissaBits returns the number of explicit mantissa bits.
func (f Format) MantissaBits() int {
	return 7 - f.EBits
}

// SmallestNormal returns 2^(1-bias), the smallest normal magnitude.
func (f Format) SmallestNormal() float32 {
	return math.Float32frombits(uint32(f32ExpBias-f.ExponentBias+1) << 23)
}

// Largest returns the largest magnitude the layout can encode, ignoring MaxPos.
func (f Format) Largest() float32 {
	mbits := f.MantissaBits()
	maxExp := 1<<f.EBits - 1 - f.ExponentBias
	return float32(math.Ldexp(2-math.Ldexp(1, -mbits), maxExp))
}

// Encode converts x to an HFP8 code. f must be valid.
func (f Format) Encode(x float32) uint8 {
	mbits := uint32(f.MantissaBits())
	bias := uint32(f.ExponentBias)

	b := math.Float32bits(x)
	sign := b & f32Sign
	v := math.Float32frombits(b &^ f32Sign)
	// NaN compares false and saturates like inf.
	if !(v <= f.MaxPos) {
		v = f.MaxPos
	}

	if v >= f.SmallestNormal() {
		// Adding a power of two 23-mbits above v's exponent rounds the
		// mantissa at the HFP8 precision using the FPU's ties-to-even.
		bouncer := math.Float32frombits(math.Float32bits(v)&0xFF800000 + (23-mbits)<<23)
		v = float32(float32(bouncer+v) - bouncer)
		out := (math.Float32bits(v) - (f32ExpBias-bias)<<23) << (8 - uint32(f.EBits))
		return uint8((out | sign) >> 24)
	}

	// Subnormal range is fixed point with lsb 2^(1-bias-mbits); after adding the
	// bouncer the low byte already holds the code.
	bouncer := math.Float32frombits((f32ExpBias + 23 + 1 - bias - mbits) << 23)
	out := math.Float32bits(float32(bouncer+v)) | sign>>24
	return uint8(out)
}

// Decode converts an HFP8 code back to float32.
func (f Format) Decode(code uint8) float32 {
	return decode(code, f.EBits, f.ExponentBias)
}

func decode(code uint8, ebits, exponentBias int) float32 {
	sign := uint32(code&0x80) << 24
	// Align the HFP8 mantissa with the FP32 mantissa. The FP32 value is then
	// 2^(bias-127) times the HFP8 value, for normals and subnormals alike.
	v := math.Float32frombits(uint32(code&0x7F) << (16 + uint32(ebits)))
	scale := math.Float32frombits(uint32(2*f32ExpBias-exponentBias) << 23)
	v = float32(v * scale)
	return math.Float32frombits(math.Float32bits(v) | sign)
}

// EncodeSlice encodes src into dst. dst must have length >= len(src).
func (f Format) EncodeSlice(dst []uint8, src []float32) {
	dst = dst[:len(src)]
	for i, x := range src {
		dst[i] = f.Encode(x)
	}
}

// DecodeSlice decodes src into dst. dst must have length >= len(src).
func (f Format) DecodeSlice(dst []float32, src []uint8) {
	dst = dst[:len(src)]
	for i, c := range src {
		dst[i] = f.Decode(c)
	}
}

// Encode converts x with the given layout, saturating at maxPos.
func Encode(x float32, ebits, exponentBias int, maxPos float32) (uint8, error) {
	f, err := NewFormat(ebits, exponentBias, maxPos)
	if err != nil {
		return 0, err
	}
	return f.Encode(x), nil
}

// Decode converts an HFP8 code with the given layout.
func Decode(code uint8, ebits, exponentBias int) (float32, error) {
	if err := validateLayout(ebits, exponentBias); err != nil {
		return 0, err
	}
	return decode(code, ebits, exponentBias), nil
}
