package rowquant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/rowquant/hfp8"
	"github.com/hupe1980/rowquant/rowwise"
)

// Kind names an encoded format.
type Kind string

const (
	KindRowwise8    Kind = "rowwise8"
	KindNBit4       Kind = "nbit4"
	KindNBit2       Kind = "nbit2"
	KindMixed8      Kind = "mixed8"
	KindFP8Forward  Kind = "fp8_forward"
	KindFP8Backward Kind = "fp8_backward"
	KindHFP8        Kind = "hfp8"
)

// NBitKind returns the Kind of bits-wide packed rows.
func NBitKind(bits int) Kind {
	if bits == 2 {
		return KindNBit2
	}
	return KindNBit4
}

func fp8Kind(forward bool) Kind {
	if forward {
		return KindFP8Forward
	}
	return KindFP8Backward
}

// Float is the set of element types rows are read from and decoded into.
type Float = rowwise.Float

// Tensor is a dense row-major buffer. The last dimension of Shape is the
// row width; all leading dimensions together give the row count.
type Tensor[E any] struct {
	Data  []E
	Shape []int
}

// NewTensor returns a tensor over data. Without a shape, data is one row.
func NewTensor[E any](data []E, shape ...int) Tensor[E] {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	return Tensor[E]{Data: data, Shape: shape}
}

// Rows returns the product of the leading dimensions, or -1 when one of
// them is negative or the product overflows int.
func (t Tensor[E]) Rows() int {
	rows := 1
	for _, d := range t.Shape[:max(len(t.Shape)-1, 0)] {
		var ok bool
		if rows, ok = rowwise.MulSize(rows, d); !ok {
			return -1
		}
	}
	return rows
}

// Cols returns the last dimension, or 0 for a rank-0 tensor.
func (t Tensor[E]) Cols() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}

// matrix flattens t into rows and columns.
func matrix[E any](t Tensor[E]) (rows, cols int, err error) {
	if len(t.Shape) == 0 {
		return 0, 0, &ErrInvalidRank{Rank: 0, Want: "at least 1", cause: rowwise.ErrInvalidShape}
	}
	rows, cols = t.Rows(), t.Cols()
	if n, ok := rowwise.MulSize(rows, cols); !ok || n != len(t.Data) {
		return 0, 0, &ErrShapeMismatch{Shape: t.Shape, Len: len(t.Data), cause: rowwise.ErrInvalidShape}
	}
	return rows, cols, nil
}

// alloc returns the output buffer of rows rows of width elements. Shapes
// whose output size overflows int are rejected before allocating.
func alloc[T, E any](in Tensor[E], rows, width int) ([]T, error) {
	n, ok := rowwise.MulSize(rows, width)
	if !ok {
		return nil, &ErrShapeMismatch{Shape: in.Shape, Len: len(in.Data), cause: rowwise.ErrInvalidShape}
	}
	return make([]T, n), nil
}

func withCols(shape []int, cols int) []int {
	out := slices.Clone(shape)
	out[len(out)-1] = cols
	return out
}

func checkEncoded(cols, trailer, align int) error {
	if cols < trailer {
		return fmt.Errorf("%w: %d encoded columns cannot hold a %d-byte trailer", rowwise.ErrInvalidShape, cols, trailer)
	}
	if cols%align != 0 {
		return &ErrColumnAlignment{Cols: cols, Multiple: align, cause: rowwise.ErrMisalignedColumns}
	}
	return nil
}

// Codec runs the rowwise kernels on tensors it allocates. It validates
// shapes before any worker starts, shares workers and scratch memory through
// an optional resource controller, and reports every call to the configured
// logger and metrics collector. A Codec is safe for concurrent use.
type Codec struct {
	opts options
}

// New returns a Codec. Invalid kernel settings are rejected with
// ErrContractViolation.
func New(optFns ...Option) (*Codec, error) {
	o := applyOptions(optFns)
	if err := o.kernel.Validate(); err != nil {
		return nil, translateError(err)
	}
	return &Codec{opts: o}, nil
}

// Options returns the kernel options calls run with before worker limits
// are applied.
func (c *Codec) Options() rowwise.Options {
	return c.opts.kernel
}

// call tracks one Codec call from validation to metrics.
type call struct {
	c      *Codec
	ctx    context.Context
	kind   Kind
	decode bool
	rows   int
	cols   int
	bytes  int64
	start  time.Time
}

func (c *Codec) begin(ctx context.Context, kind Kind, decode bool, rows, cols int) *call {
	return &call{c: c, ctx: ctx, kind: kind, decode: decode, rows: rows, cols: cols, start: time.Now()}
}

// end normalizes err and reports the call.
func (cl *call) end(err error) error {
	err = translateError(err)
	d := time.Since(cl.start)
	o := cl.c.opts
	if cl.decode {
		o.logger.LogDecode(cl.ctx, cl.kind, cl.rows, cl.cols, d, err)
		o.metricsCollector.RecordDecode(cl.kind, cl.rows, cl.bytes, d, err)
	} else {
		o.logger.LogEncode(cl.ctx, cl.kind, cl.rows, cl.cols, d, err)
		o.metricsCollector.RecordEncode(cl.kind, cl.rows, cl.bytes, d, err)
	}
	return err
}

// launch reserves workers sized for units of work plus the kernel's scratch
// memory, then runs kernel. Nothing runs when units is 0.
func (cl *call) launch(units int, scratch func(rowwise.Options) int64, kernel func(rowwise.Options) error) error {
	if err := cl.ctx.Err(); err != nil {
		return err
	}
	if units == 0 {
		return nil
	}

	o := cl.c.opts
	opt := o.kernel
	rc := o.resources

	want := opt.WorkersFor(units)
	n, err := rc.AcquireWorkers(cl.ctx, want)
	if err != nil {
		o.logger.LogAcquire(cl.ctx, "workers", int64(want), err)
		return err
	}
	defer rc.ReleaseWorkers(n)
	opt.Workers = n

	var bytes int64
	if scratch != nil {
		bytes = scratch(opt)
	}
	if err := rc.AcquireMemory(bytes); err != nil {
		o.logger.LogAcquire(cl.ctx, "memory", bytes, err)
		return err
	}
	defer rc.ReleaseMemory(bytes)

	return kernel(opt)
}

func rowScratch[T Float](rows, width int) func(rowwise.Options) int64 {
	return func(opt rowwise.Options) int64 {
		return rowwise.ScratchBytes[T](opt, rows, width)
	}
}

// Encode8 quantizes every row of in to 8-bit codes. The result has the
// shape of in with the last dimension replaced by the encoded stride
// rowwise.Encoded8Cols(cols).
func Encode8[T Float](ctx context.Context, c *Codec, in Tensor[T]) (out Tensor[byte], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, KindRowwise8, false, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[byte]{}, err
	}

	stride := rowwise.Encoded8Cols(cols)
	buf, err := alloc[byte](in, rows, stride)
	if err != nil {
		return Tensor[byte]{}, err
	}
	out = NewTensor(buf, withCols(in.Shape, stride)...)
	cl.bytes = int64(len(out.Data))

	units := rows
	if cols == 0 {
		units = 0
	}
	scratch := func(opt rowwise.Options) int64 {
		s := rowwise.ScratchBytes[T](opt, rows, cols)
		if opt.TwoPass(rows) {
			s += 2 * 4 * int64(rows)
		}
		return s
	}
	err = cl.launch(units, scratch, func(opt rowwise.Options) error {
		return rowwise.Encode8(out.Data, in.Data, rows, cols, opt)
	})
	if err != nil {
		return Tensor[byte]{}, err
	}
	return out, nil
}

// Decode8 expands 8-bit encoded rows. The last dimension of in is the
// encoded stride; the result's last dimension is the stride minus the
// trailer, padding columns included.
func Decode8[T Float](ctx context.Context, c *Codec, in Tensor[byte]) (out Tensor[T], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, KindRowwise8, true, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[T]{}, err
	}
	if err = checkEncoded(cols, rowwise.Trailer8Size, 4); err != nil {
		return Tensor[T]{}, err
	}

	width := rowwise.Decoded8Cols(cols)
	buf, err := alloc[T](in, rows, width)
	if err != nil {
		return Tensor[T]{}, err
	}
	out = NewTensor(buf, withCols(in.Shape, width)...)
	cl.bytes = int64(len(in.Data))

	err = cl.launch(unitsFor(rows, width), rowScratch[T](rows, width), func(opt rowwise.Options) error {
		return rowwise.Decode8(out.Data, in.Data, rows, cols, opt)
	})
	if err != nil {
		return Tensor[T]{}, err
	}
	return out, nil
}

func unitsFor(rows, width int) int {
	if width == 0 {
		return 0
	}
	return rows
}

// DecodeMixed8 decodes a rank-2 buffer of batch rows, each holding one 8-bit
// encoded row per table. offsets has one entry per table plus the row
// stride; see rowwise.Decode8Mixed. The result is
// [batch, rowwise.MixedDecodedCols(offsets)].
func DecodeMixed8[T Float](ctx context.Context, c *Codec, in Tensor[byte], offsets []int32) (out Tensor[T], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, KindMixed8, true, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[T]{}, err
	}
	if len(in.Shape) != 2 {
		return Tensor[T]{}, &ErrInvalidRank{Rank: len(in.Shape), Want: "2", cause: rowwise.ErrInvalidShape}
	}
	if err = rowwise.CheckOffsets(offsets, cols); err != nil {
		return Tensor[T]{}, err
	}

	tables := len(offsets) - 1
	width := rowwise.MixedDecodedCols(offsets)
	buf, err := alloc[T](in, rows, width)
	if err != nil {
		return Tensor[T]{}, err
	}
	out = NewTensor(buf, rows, width)
	cl.bytes = int64(len(in.Data))

	widest := 0
	for t := range tables {
		widest = max(widest, int(offsets[t+1]-offsets[t])-rowwise.Trailer8Size)
	}
	pairs := rows * tables
	err = cl.launch(pairs, rowScratch[T](pairs, widest), func(opt rowwise.Options) error {
		return rowwise.Decode8Mixed(out.Data, in.Data, rows, cols, offsets, opt)
	})
	if err != nil {
		return Tensor[T]{}, err
	}
	return out, nil
}

// EncodeNBit quantizes every row of in to packed bits-wide codes. bits must
// be 2 or 4 and the row width a multiple of 2*rowwise.ElementsPerByte(bits).
func EncodeNBit[T Float](ctx context.Context, c *Codec, in Tensor[T], bits int) (out Tensor[byte], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, NBitKind(bits), false, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[byte]{}, err
	}
	if err = checkNBitColumns(cols, bits); err != nil {
		return Tensor[byte]{}, err
	}

	stride := rowwise.EncodedNBitCols(cols, bits)
	buf, err := alloc[byte](in, rows, stride)
	if err != nil {
		return Tensor[byte]{}, err
	}
	out = NewTensor(buf, withCols(in.Shape, stride)...)
	cl.bytes = int64(len(out.Data))

	err = cl.launch(unitsFor(rows, cols), rowScratch[T](rows, cols), func(opt rowwise.Options) error {
		return rowwise.EncodeNBit(out.Data, in.Data, rows, cols, bits, opt)
	})
	if err != nil {
		return Tensor[byte]{}, err
	}
	return out, nil
}

func checkNBitColumns(cols, bits int) error {
	err := rowwise.CheckNBitColumns(cols, bits)
	if errors.Is(err, rowwise.ErrMisalignedColumns) {
		return &ErrColumnAlignment{Cols: cols, Multiple: 2 * rowwise.ElementsPerByte(bits), cause: err}
	}
	return err
}

// DecodeNBit expands packed bits-wide rows. The result's last dimension is
// (stride-4)*rowwise.ElementsPerByte(bits).
func DecodeNBit[T Float](ctx context.Context, c *Codec, in Tensor[byte], bits int) (out Tensor[T], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, NBitKind(bits), true, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[T]{}, err
	}
	if err = rowwise.CheckNBitColumns(0, bits); err != nil {
		return Tensor[T]{}, err
	}
	if err = checkEncoded(cols, rowwise.TrailerNBitSize, 2); err != nil {
		return Tensor[T]{}, err
	}

	width := rowwise.DecodedNBitCols(cols, bits)
	buf, err := alloc[T](in, rows, width)
	if err != nil {
		return Tensor[T]{}, err
	}
	out = NewTensor(buf, withCols(in.Shape, width)...)
	cl.bytes = int64(len(in.Data))

	err = cl.launch(unitsFor(rows, width), rowScratch[T](rows, width), func(opt rowwise.Options) error {
		return rowwise.DecodeNBit(out.Data, in.Data, rows, cols, bits, opt)
	})
	if err != nil {
		return Tensor[T]{}, err
	}
	return out, nil
}

// EncodeFP8 scales every row of in so that its largest magnitude maps to
// the format's MaxPos and stores HFP8 codes with a float32 scale trailer.
// forward selects the activation format, otherwise the gradient format.
func EncodeFP8[T Float](ctx context.Context, c *Codec, in Tensor[T], forward bool) (out Tensor[byte], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, fp8Kind(forward), false, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[byte]{}, err
	}

	stride := rowwise.Encoded8Cols(cols)
	buf, err := alloc[byte](in, rows, stride)
	if err != nil {
		return Tensor[byte]{}, err
	}
	out = NewTensor(buf, withCols(in.Shape, stride)...)
	cl.bytes = int64(len(out.Data))

	format := rowwise.FP8Format(forward)
	err = cl.launch(unitsFor(rows, cols), rowScratch[T](rows, cols), func(opt rowwise.Options) error {
		return rowwise.EncodeFP8(out.Data, in.Data, rows, cols, format, opt)
	})
	if err != nil {
		return Tensor[byte]{}, err
	}
	return out, nil
}

// DecodeFP8 expands FP8 rowwise rows produced by EncodeFP8 with the same
// forward flag.
func DecodeFP8[T Float](ctx context.Context, c *Codec, in Tensor[byte], forward bool) (out Tensor[T], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, fp8Kind(forward), true, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[T]{}, err
	}
	if err = checkEncoded(cols, rowwise.Trailer8Size, 4); err != nil {
		return Tensor[T]{}, err
	}

	width := rowwise.Decoded8Cols(cols)
	buf, err := alloc[T](in, rows, width)
	if err != nil {
		return Tensor[T]{}, err
	}
	out = NewTensor(buf, withCols(in.Shape, width)...)
	cl.bytes = int64(len(in.Data))

	format := rowwise.FP8Format(forward)
	err = cl.launch(unitsFor(rows, width), rowScratch[T](rows, width), func(opt rowwise.Options) error {
		return rowwise.DecodeFP8(out.Data, in.Data, rows, cols, format, opt)
	})
	if err != nil {
		return Tensor[T]{}, err
	}
	return out, nil
}

// EncodeHFP8 converts every element of in to an HFP8 code of the given
// format. The result has the shape of in.
func (c *Codec) EncodeHFP8(ctx context.Context, in Tensor[float32], format hfp8.Format) (out Tensor[byte], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, KindHFP8, false, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[byte]{}, err
	}
	if err = format.Validate(); err != nil {
		return Tensor[byte]{}, err
	}

	out = NewTensor(make([]byte, len(in.Data)), slices.Clone(in.Shape)...)
	cl.bytes = int64(len(out.Data))

	err = cl.launch(min(len(in.Data), 1), nil, func(rowwise.Options) error {
		format.EncodeSlice(out.Data, in.Data)
		return nil
	})
	if err != nil {
		return Tensor[byte]{}, err
	}
	return out, nil
}

// DecodeHFP8 converts HFP8 codes back to float32. Only the layout of format
// is used.
func (c *Codec) DecodeHFP8(ctx context.Context, in Tensor[byte], format hfp8.Format) (out Tensor[float32], err error) {
	rows, cols, err := matrix(in)
	cl := c.begin(ctx, KindHFP8, true, rows, cols)
	defer func() { err = cl.end(err) }()
	if err != nil {
		return Tensor[float32]{}, err
	}
	if err = format.ValidateLayout(); err != nil {
		return Tensor[float32]{}, err
	}

	out = NewTensor(make([]float32, len(in.Data)), slices.Clone(in.Shape)...)
	cl.bytes = int64(len(in.Data))

	err = cl.launch(min(len(in.Data), 1), nil, func(rowwise.Options) error {
		format.DecodeSlice(out.Data, in.Data)
		return nil
	})
	if err != nil {
		return Tensor[float32]{}, err
	}
	return out, nil
}
