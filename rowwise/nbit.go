package rowwise

import (
	"math"

	"github.com/hupe1980/rowquant/f16"
)

// ParamsNBit returns the nbit parameters for a row with extrema lo and hi.
//
// bias and scale are rounded through half precision before use so that
// encoding works with exactly the values the trailer stores.
func ParamsNBit(lo, hi float32, bits int) (scale, bias, inverse float32) {
	bias = f16.Round(lo)
	r := hi - bias
	scale = 1
	if r != 0 {
		scale = f16.Round(r / float32(maxCode(bits)))
	}
	// A constant row maps every element to code 0, so any scale decodes it.
	if scale == 0 {
		scale = 1
	}
	inverse = 1 / scale
	if math.IsInf(float64(inverse), 0) {
		scale, inverse = 1, 1
	}
	return scale, bias, inverse
}

func maxCode(bits int) int {
	return 1<<bits - 1
}

func quantizeN(x, bias, inverse float32, top int) uint8 {
	r := math.RoundToEven(float64(float32((x - bias) * inverse)))
	switch {
	case !(r > 0):
		return 0
	case r > float64(top):
		return uint8(top)
	}
	return uint8(r)
}

// packRow packs the codes of row into data, ElementsPerByte(bits) per byte,
// lowest field first. Each byte is assembled by one writer.
func packRow(data []byte, row []float32, bits int, bias, inverse float32) {
	epb := ElementsPerByte(bits)
	mc := maxCode(bits)
	for j := range data {
		base := j * epb
		var b byte
		for k := 0; k < epb && base+k < len(row); k++ {
			q := quantizeN(row[base+k], bias, inverse, mc)
			if k == 0 {
				b = q
			} else {
				b |= q << (k * bits)
			}
		}
		data[j] = b
	}
}

// unpack returns code k of a packed byte.
func unpack(b byte, k, bits int) uint8 {
	return b >> (k * bits) & byte(maxCode(bits))
}

// EncodeNBit quantizes nrows rows of ncols elements to packed bits-wide
// codes. bits must be 2 or 4 and ncols a multiple of 2*ElementsPerByte(bits).
// dst must hold nrows*EncodedNBitCols(ncols, bits) bytes.
func EncodeNBit[T Float](dst []byte, src []T, nrows, ncols, bits int, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := checkShape(len(src), nrows, ncols); err != nil {
		return err
	}
	if err := CheckNBitColumns(ncols, bits); err != nil {
		return err
	}
	stride := EncodedNBitCols(ncols, bits)
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

	dataBytes := NBitDataBytes(ncols, bits)
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
			scale, bias, inverse := ParamsNBit(lo, hi, bits)
			packRow(enc[:dataBytes], row, bits, bias, inverse)
			f16.Put(enc[dataBytes:], f16.FromFloat32(scale))
			f16.Put(enc[dataBytes+f16.Size:], f16.FromFloat32(bias))
		}
	})
}
