package lanes

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroup(t *testing.T) {
	for _, w := range []int{1, 2, 4, 8, 16, 32, 64} {
		g, err := NewGroup(w)
		require.NoError(t, err)
		assert.Equal(t, w, g.Width())
		assert.Equal(t, 1<<g.Steps(), w)
	}
	for _, w := range []int{0, -4, 3, 12, 128} {
		_, err := NewGroup(w)
		assert.ErrorIs(t, err, ErrInvalidWidth)
	}
}

func TestMinMaxMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, w := range []int{1, 4, 32, 64} {
		g, err := NewGroup(w)
		require.NoError(t, err)

		for _, n := range []int{1, 3, w - 1, w, w + 1, 5*w + 3, 1000} {
			if n <= 0 {
				continue
			}
			row := make([]float32, n)
			lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
			for i := range row {
				row[i] = rng.Float32()*200 - 100
				lo = min(lo, row[i])
				hi = max(hi, row[i])
			}

			gotLo, gotHi := g.MinMax(row)
			assert.Equal(t, lo, gotLo, "w=%d n=%d", w, n)
			assert.Equal(t, hi, gotHi, "w=%d n=%d", w, n)

			// Every lane converges, including lanes that saw no element.
			for l := 0; l < w; l++ {
				llo, lhi := g.Lane(l)
				require.Equal(t, lo, llo)
				require.Equal(t, hi, lhi)
			}
		}
	}
}

func TestMinMaxEmptyAndNaN(t *testing.T) {
	g, err := NewGroup(8)
	require.NoError(t, err)

	lo, hi := g.MinMax(nil)
	assert.True(t, math.IsInf(float64(lo), 1))
	assert.True(t, math.IsInf(float64(hi), -1))

	nan := float32(math.NaN())
	lo, hi = g.MinMax([]float32{nan, 2, -1, nan, 7})
	assert.Equal(t, float32(-1), lo)
	assert.Equal(t, float32(7), hi)
}

func BenchmarkMinMax(b *testing.B) {
	row := make([]float32, 4096)
	for i := range row {
		row[i] = float32(i % 97)
	}
	g, _ := NewGroup(32)
	b.SetBytes(int64(len(row) * 4))
	for b.Loop() {
		g.MinMax(row)
	}
}
