package rowwise

import (
	"math"

	"github.com/hupe1980/rowquant/internal/grid"
)

// eps8 keeps the 8-bit inverse scale finite for constant rows.
const eps8 = 1e-8

// Params8 returns the 8-bit parameters for a row with extrema lo and hi.
// inverse is the multiplier applied to (x - bias) before rounding.
func Params8(lo, hi float32) (scale, bias, inverse float32) {
	r := hi - lo
	return r / 255, lo, 255 / float32(r+eps8)
}

// round8 rounds half to even and saturates to [0, 255].
func round8(v float32) uint8 {
	r := math.RoundToEven(float64(v))
	switch {
	case !(r > 0):
		return 0
	case r > 255:
		return 255
	}
	return uint8(r)
}

func quantize8(dst []byte, row []float32, bias, inverse float32) {
	dst = dst[:len(row)]
	for i, x := range row {
		dst[i] = round8(float32((x - bias) * inverse))
	}
}

// writeTrailer8 zeroes the alignment padding and stores (scale, bias).
func writeTrailer8(enc []byte, ncols int, scale, bias float32) {
	clear(enc[ncols:align4(ncols)])
	t := enc[align4(ncols):]
	putF32(t, scale)
	putF32(t[4:], bias)
}

// Encode8 quantizes nrows rows of ncols elements into dst, which must hold
// nrows*Encoded8Cols(ncols) bytes.
//
// Inputs with few rows are encoded row by row in one pass. Larger inputs
// first scan every row, then quantize (row, column tile) pairs independently,
// which spreads narrow rows across more workers. Both paths produce
// byte-identical output.
func Encode8[T Float](dst []byte, src []T, nrows, ncols int, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := checkShape(len(src), nrows, ncols); err != nil {
		return err
	}
	stride := Encoded8Cols(ncols)
	if err := checkDst(len(dst), nrows, stride); err != nil {
		return err
	}
	dst = dst[:nrows*stride]
	if nrows == 0 {
		return nil
	}
	if ncols == 0 {
		clear(dst)
		return nil
	}

	s := opt.ScanStrategy(nrows, ncols)
	if opt.TwoPass(nrows) {
		return encode8TwoPass(dst, src, nrows, ncols, opt, s)
	}
	return encode8Direct(dst, src, nrows, ncols, opt, s)
}

func encode8Direct[T Float](dst []byte, src []T, nrows, ncols int, opt Options, s Strategy) error {
	stride := Encoded8Cols(ncols)
	g := opt.rowGrid()
	workers := g.WorkersFor(nrows)
	scanners := newScanners(workers, s, opt.LaneWidth)
	scratch := scratchFor[T](workers, ncols)

	return g.Run(nrows, func(w, start, end int) {
		sc, buf := scanners[w], workerRow(scratch, w, ncols)
		for r := start; r < end; r++ {
			row := widen(buf, src[r*ncols:(r+1)*ncols])
			enc := dst[r*stride : (r+1)*stride]

			scale, bias, inverse := Params8(sc.minMax(row))
			quantize8(enc, row, bias, inverse)
			writeTrailer8(enc, ncols, scale, bias)
		}
	})
}

func encode8TwoPass[T Float](dst []byte, src []T, nrows, ncols int, opt Options, s Strategy) error {
	stride := Encoded8Cols(ncols)
	params := make([]float32, 2*nrows)
	if err := scanRows(params, src, nrows, ncols, opt, s); err != nil {
		return err
	}

	tile := min(opt.TileCols, ncols)
	tilesPerRow := (ncols + tile - 1) / tile
	g := grid.Grid{Workers: opt.Workers, BlockSize: opt.BlockRows}
	n := nrows * tilesPerRow
	scratch := scratchFor[T](g.WorkersFor(n), tile)

	return g.Run(n, func(w, start, end int) {
		buf := workerRow(scratch, w, tile)
		for i := start; i < end; i++ {
			r, c0 := i/tilesPerRow, (i%tilesPerRow)*tile
			c1 := min(c0+tile, ncols)
			enc := dst[r*stride : (r+1)*stride]

			scale, bias, inverse := Params8(params[2*r], params[2*r+1])
			quantize8(enc[c0:c1], widen(buf, src[r*ncols+c0:r*ncols+c1]), bias, inverse)
			// The last tile of a row owns the padding and the trailer.
			if c1 == ncols {
				writeTrailer8(enc, ncols, scale, bias)
			}
		}
	})
}
