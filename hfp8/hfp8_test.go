package hfp8

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var e4b8 = Format{EBits: 4, ExponentBias: 8, MaxPos: 1.75 * 128}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		ebits   int
		bias    int
		maxPos  float32
		wantErr bool
	}{
		{"e4m3", 4, 8, 224, false},
		{"e5m2", 5, 15, 57344, false},
		{"zero-ebits", 0, 8, 1, true},
		{"negative-ebits", -1, 8, 1, true},
		{"too-wide", 8, 8, 1, true},
		{"zero-bias", 4, 0, 1, true},
		{"negative-bias", 4, -3, 1, true},
		{"zero-maxpos", 4, 8, 0, true},
		{"nan-maxpos", 4, 8, float32(math.NaN()), true},
		{"largest-maxpos", 4, 8, 240, false},
		{"maxpos-above-largest", 4, 8, 241, true},
		{"maxpos-far-above-largest", 4, 15, 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFormat(tt.ebits, tt.bias, tt.maxPos)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFunctionsRejectInvalidLayout(t *testing.T) {
	_, err := Encode(1, 0, 8, 224)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = Encode(1, 4, 0, 224)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = Decode(0x40, -2, 8)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = Decode(0x40, 4, 0)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	c, err := Encode(1, 4, 8, 224)
	require.NoError(t, err)
	v, err := Decode(c, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)
}

func TestEncodeKnownCodes(t *testing.T) {
	tests := []struct {
		in   float32
		want uint8
	}{
		{0, 0x00},
		{float32(math.Copysign(0, -1)), 0x80},
		{1, 0x40},
		{-1, 0xC0},
		{1.125, 0x41},
		{1.0625, 0x40}, // tie rounds to even mantissa
		{1.1875, 0x42}, // tie rounds to even mantissa
		{2, 0x48},
		{224, 0x7E},
		{1e9, 0x7E},
		{-1e9, 0xFE},
		{float32(math.Inf(1)), 0x7E},
		{float32(math.Ldexp(1, -7)), 0x08},  // smallest normal
		{float32(math.Ldexp(1, -10)), 0x01}, // smallest subnormal
		{float32(math.Ldexp(3, -10)), 0x03},
		{float32(math.Ldexp(1, -12)), 0x00}, // underflow
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, e4b8.Encode(tt.in), "encode(%v)", tt.in)
	}
}

func TestEncodeClampsToMaxPos(t *testing.T) {
	for _, x := range []float32{225, 300, 1e30, float32(math.Inf(1))} {
		assert.Equal(t, e4b8.MaxPos, e4b8.Decode(e4b8.Encode(x)))
		assert.Equal(t, -e4b8.MaxPos, e4b8.Decode(e4b8.Encode(-x)))
	}
	assert.Equal(t, e4b8.MaxPos, e4b8.Decode(e4b8.Encode(float32(math.NaN()))))
}

func TestRoundTripEveryCode(t *testing.T) {
	layouts := []struct{ ebits, bias int }{
		{2, 1}, {3, 3}, {4, 7}, {4, 8}, {4, 15}, {5, 15}, {5, 31}, {6, 31}, {7, 63},
	}
	for _, l := range layouts {
		f := Format{EBits: l.ebits, ExponentBias: l.bias}
		f.MaxPos = f.Largest()
		require.NoError(t, f.Validate())

		prev := float32(-1)
		for c := 0; c < 0x80; c++ {
			v := f.Decode(uint8(c))
			require.Greaterf(t, v, prev, "ebits=%d bias=%d code=%#x not monotonic", l.ebits, l.bias, c)
			prev = v
			require.Equalf(t, uint8(c), f.Encode(v), "ebits=%d bias=%d code=%#x", l.ebits, l.bias, c)
			require.Equalf(t, uint8(c)|0x80, f.Encode(-v), "ebits=%d bias=%d code=%#x", l.ebits, l.bias, c)
		}
	}
}

func TestRoundingIsNearest(t *testing.T) {
	f := Forward
	codes := make([]float32, 0, 0x80)
	for c := 0; c < 0x80; c++ {
		if v := f.Decode(uint8(c)); v <= f.MaxPos {
			codes = append(codes, v)
		}
	}
	for i := 0; i < 2000; i++ {
		x := float32(i) / 2000 * f.MaxPos
		got := f.Decode(f.Encode(x))
		best := codes[0]
		for _, c := range codes {
			if math.Abs(float64(c-x)) < math.Abs(float64(best-x)) {
				best = c
			}
		}
		assert.InDeltaf(t, math.Abs(float64(best-x)), math.Abs(float64(got-x)), 1e-12, "x=%v", x)
	}
}

func TestSlices(t *testing.T) {
	src := []float32{0, 0.5, -0.25, 0.9375, 2}
	codes := make([]uint8, len(src))
	Forward.EncodeSlice(codes, src)
	got := make([]float32, len(src))
	Forward.DecodeSlice(got, codes)
	assert.Equal(t, []float32{0, 0.5, -0.25, 0.9375, 0.9375}, got)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, 3, e4b8.MantissaBits())
	assert.Equal(t, float32(math.Ldexp(1, -7)), e4b8.SmallestNormal())
	assert.Equal(t, float32(240), e4b8.Largest())
}
