package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/rowquant/f16"
)

// RNG wraps a seeded math/rand source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniformRange fills dst with random values in [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// UniformTable returns nrows*ncols values in [minVal, maxVal).
func (r *RNG) UniformTable(nrows, ncols int, minVal, maxVal float32) []float32 {
	data := make([]float32, nrows*ncols)
	r.FillUniformRange(data, minVal, maxVal)
	return data
}

// GaussianTable returns nrows*ncols standard normal values.
func (r *RNG) GaussianTable(nrows, ncols int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]float32, nrows*ncols)
	for i := range data {
		data[i] = float32(r.rand.NormFloat64())
	}
	return data
}

// SkewedTable returns rows whose ranges differ by orders of magnitude: row i
// is uniform in [-s, s) with s = 10^(i%7 - 3). Rowwise codecs must adapt
// per row to keep their error bounded.
func (r *RNG) SkewedTable(nrows, ncols int) []float32 {
	data := make([]float32, nrows*ncols)
	for i := range nrows {
		s := float32(math.Pow(10, float64(i%7-3)))
		r.FillUniformRange(data[i*ncols:(i+1)*ncols], -s, s)
	}
	return data
}

// ConstantRows overwrites every k-th row of table with a single value.
func (r *RNG) ConstantRows(table []float32, ncols, k int) {
	if ncols == 0 || k <= 0 {
		return
	}
	for row := 0; row*ncols < len(table); row += k {
		v := r.Float32()*10 - 5
		for i := range ncols {
			table[row*ncols+i] = v
		}
	}
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// ToHalf narrows values to binary16.
func ToHalf(values []float32) []f16.Bits {
	out := make([]f16.Bits, len(values))
	f16.Encode(out, values)
	return out
}

// FromHalf widens binary16 values.
func FromHalf(values []f16.Bits) []float32 {
	out := make([]float32, len(values))
	f16.Decode(out, values)
	return out
}

// Row returns row i of a row-major table.
func Row[T any](table []T, ncols, i int) []T {
	return table[i*ncols : (i+1)*ncols]
}

// RowRange returns the minimum and maximum of row.
func RowRange(row []float32) (float32, float32) {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range row {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
