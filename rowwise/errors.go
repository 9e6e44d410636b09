package rowwise

import (
	"errors"

	"github.com/hupe1980/rowquant/internal/grid"
)

var (
	// ErrInvalidShape is returned for negative dimensions or a source whose
	// length does not match its shape.
	ErrInvalidShape = errors.New("rowwise: invalid shape")

	// ErrMisalignedColumns is returned when a column count violates the
	// alignment the format requires.
	ErrMisalignedColumns = errors.New("rowwise: misaligned column count")

	// ErrBufferTooSmall is returned when dst cannot hold the result.
	ErrBufferTooSmall = errors.New("rowwise: destination buffer too small")

	// ErrUnsupportedBits is returned for bit widths other than 2 or 4.
	ErrUnsupportedBits = errors.New("rowwise: unsupported bit width")

	// ErrInvalidOffsets is returned for malformed mixed-dimension offsets.
	ErrInvalidOffsets = errors.New("rowwise: invalid table offsets")

	// ErrInvalidOptions is returned by Options.Validate.
	ErrInvalidOptions = errors.New("rowwise: invalid options")

	// ErrLaunchFailed is returned when a worker aborts mid-run.
	ErrLaunchFailed = grid.ErrLaunchFailed
)
