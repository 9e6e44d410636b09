package rowwise

import (
	"fmt"
)

// MixedDecodedCols returns the decoded row width of a mixed-dimension buffer
// described by offsets: every table contributes its encoded width minus its
// trailer.
func MixedDecodedCols(offsets []int32) int {
	if len(offsets) == 0 {
		return 0
	}
	tables := len(offsets) - 1
	return int(offsets[tables]) - tables*Trailer8Size
}

// MixedOffsets returns the cumulative encoded column offsets for tables of
// the given encoded strides.
func MixedOffsets(strides ...int) []int32 {
	offsets := make([]int32, len(strides)+1)
	for i, s := range strides {
		offsets[i+1] = offsets[i] + int32(s)
	}
	return offsets
}

// CheckOffsets validates offsets against a buffer of cols encoded columns:
// offsets start at 0, end at cols and every table holds at least a trailer.
func CheckOffsets(offsets []int32, cols int) error {
	if len(offsets) == 0 {
		return fmt.Errorf("%w: need at least one offset", ErrInvalidOffsets)
	}
	if offsets[0] != 0 {
		return fmt.Errorf("%w: first offset is %d, want 0", ErrInvalidOffsets, offsets[0])
	}
	for t := 1; t < len(offsets); t++ {
		if w := offsets[t] - offsets[t-1]; w < Trailer8Size {
			return fmt.Errorf("%w: table %d spans %d bytes, less than its trailer", ErrInvalidOffsets, t-1, w)
		}
	}
	if last := int(offsets[len(offsets)-1]); last != cols {
		return fmt.Errorf("%w: offsets end at %d, rows are %d bytes", ErrInvalidOffsets, last, cols)
	}
	return nil
}

// Decode8Mixed decodes a batch of rows, each the concatenation of one 8-bit
// encoded row per table. offsets[t] is the first encoded column of table t
// and offsets[len(offsets)-1] the row stride; table t's trailer sits at
// offsets[t+1]-8. dst receives the tables' values back to back without
// padding and must hold batch*MixedDecodedCols(offsets) elements.
//
// Work is split over (row, table) pairs: pair p decodes table p%tables of
// row p/tables.
func Decode8Mixed[T Float](dst []T, src []byte, batch, cols int, offsets []int32, opt Options) error {
	opt, err := opt.resolve()
	if err != nil {
		return err
	}
	if err := checkShape(len(src), batch, cols); err != nil {
		return err
	}
	if err := CheckOffsets(offsets, cols); err != nil {
		return err
	}
	tables := len(offsets) - 1
	out := MixedDecodedCols(offsets)
	if err := checkDst(len(dst), batch, out); err != nil {
		return err
	}
	if batch == 0 || tables == 0 {
		return nil
	}

	widest := 0
	for t := range tables {
		widest = max(widest, int(offsets[t+1]-offsets[t])-Trailer8Size)
	}

	g := opt.rowGrid()
	pairs := batch * tables
	scratch := scratchFor[T](g.WorkersFor(pairs), widest)

	return g.Run(pairs, func(w, start, end int) {
		tmp := workerRow(scratch, w, widest)
		for p := start; p < end; p++ {
			b, t := p/tables, p%tables
			in0, in1 := int(offsets[t]), int(offsets[t+1])
			out0 := in0 - t*Trailer8Size
			width := in1 - in0 - Trailer8Size

			enc := src[b*cols+in0 : b*cols+in1]
			row := dst[b*out+out0 : b*out+out0+width]
			scale, bias := Trailer8(enc)

			buf := target(row, tmp)
			dequantize8(buf, enc[:width], scale, bias)
			commit(row, buf)
		}
	})
}
