package rowwise

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowquant/f16"
	"github.com/hupe1980/rowquant/testutil"
)

func encodeNBit(t *testing.T, src []float32, nrows, ncols, bits int, opt Options) []byte {
	t.Helper()
	dst := make([]byte, nrows*EncodedNBitCols(ncols, bits))
	require.NoError(t, EncodeNBit(dst, src, nrows, ncols, bits, opt))
	return dst
}

func decodeNBit(t *testing.T, enc []byte, nrows, cols, bits int) []float32 {
	t.Helper()
	dst := make([]float32, nrows*DecodedNBitCols(cols, bits))
	require.NoError(t, DecodeNBit(dst, enc, nrows, cols, bits, Options{}))
	return dst
}

func TestEncodeNBit_ConcreteRows(t *testing.T) {
	t.Run("4-bit", func(t *testing.T) {
		enc := encodeNBit(t, []float32{0, 15, 1, 2, 3, 4, 5, 6}, 1, 8, 4, Options{})
		assert.Equal(t, []byte{0xF0, 0x21, 0x43, 0x65, 0x00, 0x3C, 0x00, 0x00}, enc)
	})
	t.Run("2-bit", func(t *testing.T) {
		enc := encodeNBit(t, []float32{0, 3, 1, 2, 3, 3, 0, 1}, 1, 8, 2, Options{})
		assert.Equal(t, []byte{0x9C, 0x4F, 0x00, 0x3C, 0x00, 0x00}, enc)

		dec := decodeNBit(t, enc, 1, len(enc), 2)
		assert.Equal(t, []float32{0, 3, 1, 2, 3, 3, 0, 1}, dec)
	})
}

func TestPackUnpack(t *testing.T) {
	for _, bits := range []int{2, 4} {
		epb := ElementsPerByte(bits)
		for b := range 256 {
			row := make([]float32, epb)
			var rebuilt byte
			for k := range epb {
				c := unpack(byte(b), k, bits)
				require.LessOrEqual(t, int(c), maxCode(bits))
				rebuilt |= c << (k * bits)
				row[k] = float32(c)
			}
			require.Equal(t, byte(b), rebuilt)

			data := make([]byte, 1)
			packRow(data, row, bits, 0, 1)
			require.Equalf(t, byte(b), data[0], "bits=%d", bits)
		}
	}
}

func TestParamsNBit(t *testing.T) {
	scale, bias, inverse := ParamsNBit(0, 15, 4)
	assert.Equal(t, float32(1), scale)
	assert.Zero(t, bias)
	assert.Equal(t, float32(1), inverse)

	// Constant row.
	scale, bias, _ = ParamsNBit(2, 2, 2)
	assert.Equal(t, float32(1), scale)
	assert.Equal(t, float32(2), bias)

	// Scale underflows half precision.
	scale, _, inverse = ParamsNBit(0, 1e-9, 4)
	assert.Equal(t, float32(1), scale)
	assert.Equal(t, float32(1), inverse)

	scale, bias, _ = ParamsNBit(0.1, 1.1, 4)
	assert.Equal(t, f16.Round(0.1), bias)
	assert.Equal(t, f16.Round((1.1-f16.Round(0.1))/15), scale)
}

func TestEncodeNBit_RoundTripBound(t *testing.T) {
	rng := testutil.NewRNG(5)
	for _, bits := range []int{2, 4} {
		for _, tc := range []struct {
			name         string
			nrows, ncols int
			table        []float32
		}{
			{"uniform", 33, 16, rng.UniformTable(33, 16, -1, 1)},
			{"wide", 5, 256, rng.GaussianTable(5, 256)},
			{"skewed", 21, 24, rng.SkewedTable(21, 24)},
		} {
			t.Run(tc.name, func(t *testing.T) {
				stride := EncodedNBitCols(tc.ncols, bits)
				enc := encodeNBit(t, tc.table, tc.nrows, tc.ncols, bits, Options{})
				dec := decodeNBit(t, enc, tc.nrows, stride, bits)
				require.Len(t, dec, tc.nrows*tc.ncols)

				for r := range tc.nrows {
					scale, _ := TrailerNBit(enc[r*stride : (r+1)*stride])
					row := testutil.Row(tc.table, tc.ncols, r)
					lo, hi := testutil.RowRange(row)
					tol := float64(scale)*0.51 + 1e-3*math.Max(math.Abs(float64(lo)), math.Abs(float64(hi))) + 1e-7
					for i, x := range row {
						require.InDeltaf(t, x, dec[r*tc.ncols+i], tol, "bits=%d row=%d col=%d", bits, r, i)
					}
				}
			})
		}
	}
}

func TestEncodeNBit_ConstantRowExact(t *testing.T) {
	row := []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	for _, bits := range []int{2, 4} {
		enc := encodeNBit(t, row, 1, 8, bits, Options{})
		assert.Equal(t, row, decodeNBit(t, enc, 1, len(enc), bits))
	}
}

func TestEncodeNBit_StrategiesAgree(t *testing.T) {
	table := testutil.NewRNG(8).GaussianTable(60, 64)
	for _, bits := range []int{2, 4} {
		want := encodeNBit(t, table, 60, 64, bits, Options{Workers: 1, DirectMaxRows: 100, LaneScanMinCols: 1000})
		for _, opt := range []Options{{}, {Workers: 5, BlockRows: 3, LaneWidth: 8}, {LaneScanMinCols: 1, LaneWidth: 64}} {
			assert.True(t, bytes.Equal(want, encodeNBit(t, table, 60, 64, bits, opt)))
		}
	}
}

func TestEncodeNBit_HalfElements(t *testing.T) {
	half := testutil.ToHalf(testutil.NewRNG(4).UniformTable(10, 16, -2, 2))
	widened := testutil.FromHalf(half)
	for _, bits := range []int{2, 4} {
		stride := EncodedNBitCols(16, bits)
		enc := make([]byte, 10*stride)
		require.NoError(t, EncodeNBit(enc, half, 10, 16, bits, Options{}))
		assert.Equal(t, encodeNBit(t, widened, 10, 16, bits, Options{}), enc)

		out := make([]f16.Bits, 10*16)
		require.NoError(t, DecodeNBit(out, enc, 10, stride, bits, Options{}))
		ref := decodeNBit(t, enc, 10, stride, bits)
		for i := range out {
			require.Equal(t, f16.FromFloat32(ref[i]), out[i])
		}
	}
}

func TestEncodeNBit_Layout(t *testing.T) {
	assert.Equal(t, 4, ElementsPerByte(2))
	assert.Equal(t, 2, ElementsPerByte(4))
	assert.Equal(t, 8+4, EncodedNBitCols(32, 2))
	assert.Equal(t, 16+4, EncodedNBitCols(32, 4))
	assert.Equal(t, 32, DecodedNBitCols(12, 2))
	assert.Equal(t, 32, DecodedNBitCols(20, 4))

	for _, ncols := range []int{0, 4, 8, 12} {
		assert.NoError(t, CheckNBitColumns(ncols, 4))
	}
	for _, ncols := range []int{2, 6, 10} {
		assert.ErrorIs(t, CheckNBitColumns(ncols, 4), ErrMisalignedColumns)
	}
	assert.NoError(t, CheckNBitColumns(16, 2))
	assert.ErrorIs(t, CheckNBitColumns(4, 2), ErrMisalignedColumns)
	assert.ErrorIs(t, CheckNBitColumns(8, 3), ErrUnsupportedBits)
}

func TestEncodeNBit_Degenerate(t *testing.T) {
	require.NoError(t, EncodeNBit(nil, []float32{}, 0, 8, 4, Options{}))

	dst := bytes.Repeat([]byte{7}, 2*TrailerNBitSize)
	require.NoError(t, EncodeNBit(dst, []float32{}, 2, 0, 2, Options{}))
	assert.Equal(t, make([]byte, 2*TrailerNBitSize), dst)

	require.NoError(t, DecodeNBit([]float32{}, make([]byte, 8), 2, 4, 4, Options{}))
}

func TestEncodeNBit_Errors(t *testing.T) {
	src := make([]float32, 12)
	dst := make([]byte, 64)
	assert.ErrorIs(t, EncodeNBit(dst, src, 2, 6, 4, Options{}), ErrMisalignedColumns)
	assert.ErrorIs(t, EncodeNBit(dst, src, 3, 4, 2, Options{}), ErrMisalignedColumns)
	assert.ErrorIs(t, EncodeNBit(dst, src, 3, 4, 3, Options{}), ErrUnsupportedBits)
	assert.ErrorIs(t, EncodeNBit(dst, src, 2, 4, 4, Options{}), ErrInvalidShape)
	assert.ErrorIs(t, EncodeNBit(dst[:5], src, 3, 4, 4, Options{}), ErrBufferTooSmall)

	out := make([]float32, 64)
	assert.ErrorIs(t, DecodeNBit(out, make([]byte, 7), 1, 7, 4, Options{}), ErrMisalignedColumns)
	assert.ErrorIs(t, DecodeNBit(out, make([]byte, 2), 1, 2, 4, Options{}), ErrInvalidShape)
	assert.ErrorIs(t, DecodeNBit(out, make([]byte, 8), 1, 8, 8, Options{}), ErrUnsupportedBits)
	assert.ErrorIs(t, DecodeNBit(out[:1], make([]byte, 8), 1, 8, 4, Options{}), ErrBufferTooSmall)
}
