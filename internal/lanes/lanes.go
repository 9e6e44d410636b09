// Package lanes emulates a fixed-width group of cooperating execution lanes.
//
// A Group owns one partial min/max accumulator per lane. Lane l reduces the
// strided subset l, l+W, l+2W, ... of a row; a butterfly (XOR) exchange then
// combines the partials in log2(W) steps so that every lane holds the row's
// true extrema. A Group is scratch state for a single goroutine.
package lanes

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// MaxWidth is the widest supported group.
const MaxWidth = 64

// ErrInvalidWidth is returned for group widths that are not a power of two
// in [1, MaxWidth].
var ErrInvalidWidth = errors.New("lanes: invalid group width")

// Group is a lane group of fixed power-of-two width.
type Group struct {
	width int
	steps int
	lo    [MaxWidth]float32
	hi    [MaxWidth]float32
}

// ValidWidth reports whether w is a usable group width.
func ValidWidth(w int) bool {
	return w >= 1 && w <= MaxWidth && w&(w-1) == 0
}

// NewGroup returns a group of the given width.
func NewGroup(width int) (*Group, error) {
	if !ValidWidth(width) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	return &Group{width: width, steps: bits.TrailingZeros(uint(width))}, nil
}

// Width returns the number of lanes.
func (g *Group) Width() int { return g.width }

// Steps returns the number of butterfly exchange rounds.
func (g *Group) Steps() int { return g.steps }

// MinMax returns the minimum and maximum of row. NaNs are ignored; an empty
// row (or one holding only NaNs) yields (+Inf, -Inf).
func (g *Group) MinMax(row []float32) (float32, float32) {
	w := g.width
	lo, hi := g.lo[:w], g.hi[:w]
	for l := range lo {
		lo[l] = float32(math.Inf(1))
		hi[l] = float32(math.Inf(-1))
	}

	for base := 0; base < len(row); base += w {
		chunk := row[base:min(base+w, len(row))]
		for l, x := range chunk {
			if x < lo[l] {
				lo[l] = x
			}
			if x > hi[l] {
				hi[l] = x
			}
		}
	}

	g.exchange()
	return lo[0], hi[0]
}

// exchange performs the XOR butterfly. After round k every lane holds the
// extrema of the 2^(k+1) lanes sharing its high bits.
func (g *Group) exchange() {
	for off := g.width >> 1; off > 0; off >>= 1 {
		for l := 0; l < g.width; l++ {
			p := l ^ off
			if p < l {
				continue
			}
			lo := g.lo[l]
			if g.lo[p] < lo {
				lo = g.lo[p]
			}
			hi := g.hi[l]
			if g.hi[p] > hi {
				hi = g.hi[p]
			}
			g.lo[l], g.lo[p] = lo, lo
			g.hi[l], g.hi[p] = hi, hi
		}
	}
}

// Lane returns the accumulators of lane l after the last MinMax.
func (g *Group) Lane(l int) (float32, float32) {
	return g.lo[l], g.hi[l]
}
