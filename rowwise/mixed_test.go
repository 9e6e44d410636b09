package rowwise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowquant/f16"
	"github.com/hupe1980/rowquant/testutil"
)

// interleave concatenates row b of every encoded table into one buffer row.
func interleave(batch int, tables ...[]byte) ([]byte, []int32) {
	strides := make([]int, len(tables))
	for i, tb := range tables {
		strides[i] = len(tb) / batch
	}
	offsets := MixedOffsets(strides...)
	cols := int(offsets[len(tables)])
	out := make([]byte, 0, batch*cols)
	for b := range batch {
		for i, tb := range tables {
			out = append(out, tb[b*strides[i]:(b+1)*strides[i]]...)
		}
	}
	return out, offsets
}

func TestDecode8Mixed(t *testing.T) {
	rng := testutil.NewRNG(21)
	batch := 9
	widths := []int{12, 6, 33}

	var encoded [][]byte
	var decoded [][]float32
	for _, w := range widths {
		enc := encode8(t, rng.UniformTable(batch, w, -2, 3), batch, w, Options{})
		encoded = append(encoded, enc)
		decoded = append(decoded, decode8(t, enc, batch, Encoded8Cols(w), Options{}))
	}

	src, offsets := interleave(batch, encoded...)
	assert.Equal(t, []int32{0, 20, 36, 80}, offsets)
	out := MixedDecodedCols(offsets)
	assert.Equal(t, 12+8+36, out)

	for _, opt := range []Options{{}, {Workers: 1}, {Workers: 4, BlockRows: 1}} {
		dst := make([]float32, batch*out)
		require.NoError(t, Decode8Mixed(dst, src, batch, len(src)/batch, offsets, opt))

		for b := range batch {
			col := 0
			for i, w := range widths {
				dw := align4(w)
				assert.Equal(t, decoded[i][b*dw:(b+1)*dw], dst[b*out+col:b*out+col+dw], "batch %d table %d", b, i)
				col += dw
			}
		}

		half := make([]f16.Bits, batch*out)
		require.NoError(t, Decode8Mixed(half, src, batch, len(src)/batch, offsets, opt))
		for i := range half {
			require.Equal(t, f16.FromFloat32(dst[i]), half[i])
		}
	}
}

func TestDecode8Mixed_SingleTableMatchesDecode8(t *testing.T) {
	table := testutil.NewRNG(2).GaussianTable(25, 16)
	enc := encode8(t, table, 25, 16, Options{})
	stride := Encoded8Cols(16)

	dst := make([]float32, 25*16)
	require.NoError(t, Decode8Mixed(dst, enc, 25, stride, MixedOffsets(stride), Options{}))
	assert.Equal(t, decode8(t, enc, 25, stride, Options{}), dst)
}

func TestDecode8Mixed_Degenerate(t *testing.T) {
	require.NoError(t, Decode8Mixed([]float32{}, nil, 0, 16, []int32{0, 16}, Options{}))
	require.NoError(t, Decode8Mixed([]float32{}, nil, 3, 0, []int32{0}, Options{}))
	assert.Zero(t, MixedDecodedCols(nil))
	assert.Zero(t, MixedDecodedCols([]int32{0}))
}

func TestDecode8Mixed_InvalidOffsets(t *testing.T) {
	src := make([]byte, 2*36)
	dst := make([]float32, 2*20)
	for _, offsets := range [][]int32{
		nil,
		{1, 20, 36},
		{0, 4, 36},
		{0, 20, 30},
		{0, 30, 20},
	} {
		assert.ErrorIs(t, Decode8Mixed(dst, src, 2, 36, offsets, Options{}), ErrInvalidOffsets, "%v", offsets)
	}
	assert.ErrorIs(t, Decode8Mixed(dst, src, 3, 36, []int32{0, 20, 36}, Options{}), ErrInvalidShape)
	assert.ErrorIs(t, Decode8Mixed(dst[:10], src, 2, 36, []int32{0, 20, 36}, Options{}), ErrBufferTooSmall)
}
