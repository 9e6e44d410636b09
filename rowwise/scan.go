package rowwise

import (
	"fmt"
	"math"

	"github.com/hupe1980/rowquant/internal/lanes"
)

// scanner computes row extrema with a fixed strategy. Each worker owns one.
type scanner struct {
	group *lanes.Group
}

func newScanner(s Strategy, laneWidth int) (*scanner, error) {
	if s != Lanes {
		return &scanner{}, nil
	}
	g, err := lanes.NewGroup(laneWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return &scanner{group: g}, nil
}

func (s *scanner) minMax(row []float32) (float32, float32) {
	if s.group != nil {
		return s.group.MinMax(row)
	}
	return minMaxSerial(row)
}

// newScanners builds one scanner per worker. laneWidth must already be valid.
func newScanners(n int, s Strategy, laneWidth int) []*scanner {
	out := make([]*scanner, n)
	for i := range out {
		out[i], _ = newScanner(s, laneWidth)
	}
	return out
}

// minMaxSerial is the fused single-pass scan. NaNs are ignored.
func minMaxSerial(row []float32) (float32, float32) {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, x := range row {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// MinMax returns the extrema of row using strategy s. laneWidth is only
// consulted for Lanes. An empty row yields (+Inf, -Inf).
func MinMax(row []float32, s Strategy, laneWidth int) (float32, float32, error) {
	sc, err := newScanner(s, laneWidth)
	if err != nil {
		return 0, 0, err
	}
	lo, hi := sc.minMax(row)
	return lo, hi, nil
}

// ScanRows writes the extrema of every row of src into params as
// (min, max) pairs: params[2r] and params[2r+1] belong to row r.
func ScanRows[T Float](params []float32, src []T, nrows, ncols int, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := checkShape(len(src), nrows, ncols); err != nil {
		return err
	}
	if err := checkDst(len(params), nrows, 2); err != nil {
		return err
	}
	if nrows == 0 || ncols == 0 {
		return nil
	}
	return scanRows(params, src, nrows, ncols, opt, opt.ScanStrategy(nrows, ncols))
}

func scanRows[T Float](params []float32, src []T, nrows, ncols int, opt Options, s Strategy) error {
	g := opt.rowGrid()
	workers := g.WorkersFor(nrows)
	scanners := newScanners(workers, s, opt.LaneWidth)
	scratch := scratchFor[T](workers, ncols)

	return g.Run(nrows, func(w, start, end int) {
		sc, buf := scanners[w], workerRow(scratch, w, ncols)
		for r := start; r < end; r++ {
			lo, hi := sc.minMax(widen(buf, src[r*ncols:(r+1)*ncols]))
			params[2*r], params[2*r+1] = lo, hi
		}
	})
}
