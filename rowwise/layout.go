package rowwise

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/rowquant/f16"
)

const (
	// Trailer8Size is the size of the float32 (scale, bias) trailer.
	Trailer8Size = 8
	// TrailerNBitSize is the size of the half-precision (scale, bias) trailer.
	TrailerNBitSize = 2 * f16.Size
)

func align4(n int) int {
	return (n + 3) &^ 3
}

// Encoded8Cols returns the encoded row stride for ncols input columns.
func Encoded8Cols(ncols int) int {
	return align4(ncols) + Trailer8Size
}

// Decoded8Cols returns the decoded row width for an encoded stride.
func Decoded8Cols(cols int) int {
	return cols - Trailer8Size
}

// ElementsPerByte returns how many codes of the given width share a byte.
func ElementsPerByte(bits int) int {
	return 8 / bits
}

func checkBits(bits int) error {
	if bits != 2 && bits != 4 {
		return fmt.Errorf("%w: %d", ErrUnsupportedBits, bits)
	}
	return nil
}

// NBitDataBytes returns the packed data size of a row of ncols codes.
func NBitDataBytes(ncols, bits int) int {
	epb := ElementsPerByte(bits)
	return (ncols + epb - 1) / epb
}

// EncodedNBitCols returns the encoded row stride for ncols input columns.
func EncodedNBitCols(ncols, bits int) int {
	return NBitDataBytes(ncols, bits) + TrailerNBitSize
}

// DecodedNBitCols returns the decoded row width for an encoded stride.
func DecodedNBitCols(cols, bits int) int {
	return (cols - TrailerNBitSize) * ElementsPerByte(bits)
}

// CheckNBitColumns reports whether ncols keeps the nbit trailer 2-byte
// aligned, i.e. ncols is a multiple of 2*ElementsPerByte(bits).
func CheckNBitColumns(ncols, bits int) error {
	if err := checkBits(bits); err != nil {
		return err
	}
	if m := 2 * ElementsPerByte(bits); ncols%m != 0 {
		return fmt.Errorf("%w: %d columns is not a multiple of %d for %d-bit rows", ErrMisalignedColumns, ncols, m, bits)
	}
	return nil
}

// MulSize returns a*b for non-negative operands, or false when either is
// negative or the product overflows int.
func MulSize(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if b != 0 && a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

func checkShape(n, nrows, ncols int) error {
	want, ok := MulSize(nrows, ncols)
	if !ok {
		return fmt.Errorf("%w: %dx%d", ErrInvalidShape, nrows, ncols)
	}
	if n != want {
		return fmt.Errorf("%w: buffer holds %d elements, shape %dx%d needs %d", ErrInvalidShape, n, nrows, ncols, want)
	}
	return nil
}

// checkDst reports whether a destination of n elements holds nrows rows of
// width elements.
func checkDst(n, nrows, width int) error {
	want, ok := MulSize(nrows, width)
	if !ok {
		return fmt.Errorf("%w: %d rows of %d elements overflow", ErrInvalidShape, nrows, width)
	}
	if n < want {
		return fmt.Errorf("%w: have %d, need %d", ErrBufferTooSmall, n, want)
	}
	return nil
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// Trailer8 returns the (scale, bias) stored in an 8-bit encoded row.
func Trailer8(row []byte) (scale, bias float32) {
	t := row[len(row)-Trailer8Size:]
	return getF32(t), getF32(t[4:])
}

// TrailerNBit returns the (scale, bias) stored in an nbit encoded row.
func TrailerNBit(row []byte) (scale, bias float32) {
	t := row[len(row)-TrailerNBitSize:]
	return f16.Get(t).Float32(), f16.Get(t[f16.Size:]).Float32()
}
