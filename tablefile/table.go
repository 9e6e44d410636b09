package tablefile

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rowquant/rowwise"
)

// Format identifies the row encoding stored in a table file.
type Format uint8

const (
	FormatRowwise8 Format = iota + 1
	FormatNBit4
	FormatNBit2
	FormatFP8Forward
	FormatFP8Backward
	FormatMixed8
)

func (f Format) String() string {
	switch f {
	case FormatRowwise8:
		return "rowwise8"
	case FormatNBit4:
		return "nbit4"
	case FormatNBit2:
		return "nbit2"
	case FormatFP8Forward:
		return "fp8_forward"
	case FormatFP8Backward:
		return "fp8_backward"
	case FormatMixed8:
		return "mixed8"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

var (
	// ErrInvalidTable is returned when a table description is inconsistent.
	ErrInvalidTable = errors.New("tablefile: invalid table")
	// ErrCorrupt is returned when a file cannot be parsed.
	ErrCorrupt = errors.New("tablefile: corrupt file")
	// ErrChecksumMismatch is returned when the payload checksum does not match.
	ErrChecksumMismatch = errors.New("tablefile: checksum mismatch")
	// ErrUnsupportedVersion is returned for files written by a newer version.
	ErrUnsupportedVersion = errors.New("tablefile: unsupported version")
)

// Table describes an encoded row buffer.
type Table struct {
	Format Format
	Rows   int
	// Stride is the encoded row size in bytes.
	Stride int
	// Cols is the logical (decoded) column count.
	Cols int
	// Offsets holds the cumulative per-table strides of a mixed table.
	Offsets []int32
}

// Rowwise8Table describes rows of ncols columns encoded with the 8-bit format.
func Rowwise8Table(rows, ncols int) Table {
	return Table{Format: FormatRowwise8, Rows: rows, Stride: rowwise.Encoded8Cols(ncols), Cols: ncols}
}

// NBitTable describes rows of ncols columns packed at the given bit width.
func NBitTable(rows, ncols, bits int) Table {
	f := FormatNBit4
	if bits == 2 {
		f = FormatNBit2
	}
	return Table{Format: f, Rows: rows, Stride: rowwise.EncodedNBitCols(ncols, bits), Cols: ncols}
}

// FP8Table describes rows of ncols columns encoded with the FP8 rowwise format.
func FP8Table(rows, ncols int, forward bool) Table {
	f := FormatFP8Backward
	if forward {
		f = FormatFP8Forward
	}
	return Table{Format: f, Rows: rows, Stride: rowwise.Encoded8Cols(ncols), Cols: ncols}
}

// Mixed8Table describes an interleaved buffer of 8-bit tables.
func Mixed8Table(rows int, offsets []int32) Table {
	t := Table{Format: FormatMixed8, Rows: rows, Offsets: offsets}
	if len(offsets) > 0 {
		t.Stride = int(offsets[len(offsets)-1])
		t.Cols = rowwise.MixedDecodedCols(offsets)
	}
	return t
}

// Bits returns the code width of the format.
func (t Table) Bits() int {
	switch t.Format {
	case FormatNBit4:
		return 4
	case FormatNBit2:
		return 2
	default:
		return 8
	}
}

// Size returns the encoded payload size in bytes.
func (t Table) Size() int64 {
	return int64(t.Rows) * int64(t.Stride)
}

// Validate checks that Stride, Cols and Offsets agree with Format.
func (t Table) Validate() error {
	if t.Rows < 0 || t.Stride < 0 || t.Cols < 0 {
		return fmt.Errorf("%w: negative dimension", ErrInvalidTable)
	}
	if t.Format != FormatMixed8 && len(t.Offsets) != 0 {
		return fmt.Errorf("%w: offsets on %s table", ErrInvalidTable, t.Format)
	}

	var want int
	switch t.Format {
	case FormatRowwise8, FormatFP8Forward, FormatFP8Backward:
		want = rowwise.Encoded8Cols(t.Cols)
	case FormatNBit4, FormatNBit2:
		want = rowwise.EncodedNBitCols(t.Cols, t.Bits())
	case FormatMixed8:
		if err := rowwise.CheckOffsets(t.Offsets, t.Stride); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTable, err)
		}
		if c := rowwise.MixedDecodedCols(t.Offsets); c != t.Cols {
			return fmt.Errorf("%w: cols %d, offsets imply %d", ErrInvalidTable, t.Cols, c)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown format %d", ErrInvalidTable, uint8(t.Format))
	}
	if t.Stride != want {
		return fmt.Errorf("%w: %s stride %d for %d cols, want %d", ErrInvalidTable, t.Format, t.Stride, t.Cols, want)
	}
	return nil
}
