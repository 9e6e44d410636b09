package rowwise

import (
	"fmt"
)

func checkEncodedCols(cols, trailer, align int) error {
	if cols < trailer {
		return fmt.Errorf("%w: %d encoded columns cannot hold a %d-byte trailer", ErrInvalidShape, cols, trailer)
	}
	if cols%align != 0 {
		return fmt.Errorf("%w: encoded stride %d is not a multiple of %d", ErrMisalignedColumns, cols, align)
	}
	return nil
}

// Decode8 expands nrows 8-bit encoded rows of stride cols into dst, which
// must hold nrows*Decoded8Cols(cols) elements. Padding columns decode to
// the row's bias.
func Decode8[T Float](dst []T, src []byte, nrows, cols int, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
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
			scale, bias := Trailer8(enc)

			buf := target(row, tmp)
			dequantize8(buf, enc[:out], scale, bias)
			commit(row, buf)
		}
	})
}

func dequantize8(dst []float32, codes []byte, scale, bias float32) {
	dst = dst[:len(codes)]
	for i, c := range codes {
		dst[i] = float32(float32(c)*scale) + bias
	}
}

// DecodeNBit expands nrows packed rows of stride cols into dst, which must
// hold nrows*DecodedNBitCols(cols, bits) elements.
func DecodeNBit[T Float](dst []T, src []byte, nrows, cols, bits int, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := checkBits(bits); err != nil {
		return err
	}
	if err := checkEncodedCols(cols, TrailerNBitSize, 2); err != nil {
		return err
	}
	if err := checkShape(len(src), nrows, cols); err != nil {
		return err
	}
	out := DecodedNBitCols(cols, bits)
	if err := checkDst(len(dst), nrows, out); err != nil {
		return err
	}
	if nrows == 0 || out == 0 {
		return nil
	}

	dataBytes := cols - TrailerNBitSize
	epb := ElementsPerByte(bits)
	g := opt.rowGrid()
	scratch := scratchFor[T](g.WorkersFor(nrows), out)

	return g.Run(nrows, func(w, start, end int) {
		tmp := workerRow(scratch, w, out)
		for r := start; r < end; r++ {
			enc := src[r*cols : (r+1)*cols]
			row := dst[r*out : (r+1)*out]
			scale, bias := TrailerNBit(enc)

			buf := target(row, tmp)
			for i, b := range enc[:dataBytes] {
				for k := 0; k < epb; k++ {
					buf[i*epb+k] = float32(float32(unpack(b, k, bits))*scale) + bias
				}
			}
			commit(row, buf)
		}
	})
}
