package rowwise

import (
	"github.com/hupe1980/rowquant/hfp8"
)

// epsFP8 keeps the FP8 scale finite for all-zero rows.
const epsFP8 = 1e-20

// ParamsFP8 returns the multiplier that maps a row's largest magnitude onto
// maxPos.
func ParamsFP8(lo, hi, maxPos float32) float32 {
	return maxPos / float32(epsFP8+max(hi, -lo))
}

// EncodeFP8 quantizes rows to HFP8 codes after scaling each row so that its
// largest magnitude maps to format.MaxPos. The layout matches the 8-bit
// format: codes, padding to 4 bytes, then a float32 scale and 4 zero bytes.
// dst must hold nrows*Encoded8Cols(ncols) bytes.
func EncodeFP8[T Float](dst []byte, src []T, nrows, ncols int, format hfp8.Format, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := format.Validate(); err != nil {
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

	g := opt.rowGrid()
	workers := g.WorkersFor(nrows)
	scanners := newScanners(workers, opt.ScanStrategy(nrows, ncols), opt.LaneWidth)
	scratch := scratchFor[T](workers, ncols)

	return g.Run(nrows, func(w, start, end int) {
		sc, buf := scanners[w], workerRow(scratch, w, ncols)
		for r := start; r < end; r++ {
			row := widen(buf, src[r*ncols:(r+1)*ncols])
			enc := dst[r*stride : (r+1)*stride]

			lo, hi := sc.minMax(row)
			scale := ParamsFP8(lo, hi, format.MaxPos)
			for i, x := range row {
				enc[i] = format.Encode(float32(x * scale))
			}
			writeTrailer8(enc, ncols, scale, 0)
		}
	})
}

// DecodeFP8 expands FP8 rowwise rows of stride cols into dst, which must
// hold nrows*Decoded8Cols(cols) elements. Only the layout of format is used.
func DecodeFP8[T Float](dst []T, src []byte, nrows, cols int, format hfp8.Format, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := format.ValidateLayout(); err != nil {
		return err
	}
	if err := checkEncodedCols(cols, Trailer8Size, 4); err != nil {
		return err
	}
	if err := checkShape(len(src), nrows, cols); err != nil {
		return err
	}
	out := Decoded8Cols(cols)
	if err := checkDst(len(dst), nrows, out); err != nil {
		return err
	}
	if nrows == 0 || out == 0 {
		return nil
	}

	g := opt.rowGrid()
	scratch := scratchFor[T](g.WorkersFor(nrows), out)

	return g.Run(nrows, func(w, start, end int) {
		tmp := workerRow(scratch, w, out)
		for r := start; r < end; r++ {
			enc := src[r*cols : (r+1)*cols]
			row := dst[r*out : (r+1)*out]
			scale, _ := Trailer8(enc)

			buf := target(row, tmp)
			for i, c := range enc[:out] {
				buf[i] = format.Decode(c) / scale
			}
			commit(row, buf)
		}
	})
}

// FP8Format returns the forward (activation) or backward (gradient) format.
func FP8Format(forward bool) hfp8.Format {
	if forward {
		return hfp8.Forward
	}
	return hfp8.Backward
}
