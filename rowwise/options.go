package rowwise

import (
	"fmt"
	"runtime"

	"github.com/hupe1980/rowquant/internal/cpuinfo"
	"github.com/hupe1980/rowquant/internal/grid"
	"github.com/hupe1980/rowquant/internal/lanes"
)

// Strategy selects how row extrema are computed.
type Strategy uint8

const (
	// Serial scans a row once, tracking min and max together.
	Serial Strategy = iota
	// Lanes splits a row across a lane group and combines the partial
	// extrema with a butterfly exchange.
	Lanes
)

func (s Strategy) String() string {
	switch s {
	case Serial:
		return "serial"
	case Lanes:
		return "lanes"
	default:
		return "unknown"
	}
}

const (
	// DefaultDirectMaxRows is the largest row count 8-bit encoding handles in
	// a single direct pass.
	DefaultDirectMaxRows = 20
	// DefaultLaneScanMinCols is the narrowest row scanned with a lane group.
	DefaultLaneScanMinCols = 128
	// DefaultBlockRows is the number of rows per grid block.
	DefaultBlockRows = 16
	// DefaultTileCols is the width of a column tile in the two-pass encoder.
	DefaultTileCols = 512
)

// Options controls parallel execution. The zero value selects defaults.
type Options struct {
	// Workers is the number of concurrent workers. 0 means GOMAXPROCS.
	Workers int
	// LaneWidth is the lane-group width: a power of two in [1, 64].
	// 0 derives it from the host's vector width.
	LaneWidth int
	// DirectMaxRows: 8-bit encodes with at most this many rows take the
	// direct single pass; larger inputs scan first, then quantize tiles.
	DirectMaxRows int
	// LaneScanMinCols: rows at least this wide use the lane-group scan even
	// when there are few of them.
	LaneScanMinCols int
	// BlockRows is the number of consecutive rows per grid block.
	BlockRows int
	// TileCols is the column tile width in the two-pass 8-bit encoder.
	TileCols int
}

// DefaultOptions returns the options the zero value resolves to on this host.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.LaneWidth == 0 {
		o.LaneWidth = cpuinfo.Active().GroupWidth()
	}
	if o.DirectMaxRows == 0 {
		o.DirectMaxRows = DefaultDirectMaxRows
	}
	if o.LaneScanMinCols == 0 {
		o.LaneScanMinCols = DefaultLaneScanMinCols
	}
	if o.BlockRows == 0 {
		o.BlockRows = DefaultBlockRows
	}
	if o.TileCols == 0 {
		o.TileCols = DefaultTileCols
	}
	return o
}

// Validate reports invalid settings. Zero fields are valid.
func (o Options) Validate() error {
	switch {
	case o.Workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidOptions, o.Workers)
	case o.LaneWidth != 0 && !lanes.ValidWidth(o.LaneWidth):
		return fmt.Errorf("%w: lane width %d is not a power of two in [1, %d]", ErrInvalidOptions, o.LaneWidth, lanes.MaxWidth)
	case o.DirectMaxRows < 0:
		return fmt.Errorf("%w: direct max rows %d", ErrInvalidOptions, o.DirectMaxRows)
	case o.LaneScanMinCols < 0:
		return fmt.Errorf("%w: lane scan min cols %d", ErrInvalidOptions, o.LaneScanMinCols)
	case o.BlockRows < 0:
		return fmt.Errorf("%w: block rows %d", ErrInvalidOptions, o.BlockRows)
	case o.TileCols < 0:
		return fmt.Errorf("%w: tile cols %d", ErrInvalidOptions, o.TileCols)
	}
	return nil
}

// resolve validates o and fills in defaults.
func (o Options) resolve() (Options, error) {
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o.withDefaults(), nil
}

// ScanStrategy returns the extrema strategy for a kernel over nrows rows of
// ncols elements: lane groups for numerous or wide rows, the serial scan
// otherwise.
func (o Options) ScanStrategy(nrows, ncols int) Strategy {
	o = o.withDefaults()
	if nrows > o.DirectMaxRows || ncols >= o.LaneScanMinCols {
		return Lanes
	}
	return Serial
}

// TwoPass reports whether an 8-bit encode of nrows rows scans all rows
// before quantizing.
func (o Options) TwoPass(nrows int) bool {
	return nrows > o.withDefaults().DirectMaxRows
}

func (o Options) rowGrid() grid.Grid {
	return grid.Grid{Workers: o.Workers, BlockSize: o.BlockRows}
}

// WorkersFor returns how many workers a kernel over nrows rows starts.
func (o Options) WorkersFor(nrows int) int {
	return o.withDefaults().rowGrid().WorkersFor(nrows)
}
