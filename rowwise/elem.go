package rowwise

import (
	"github.com/hupe1980/rowquant/f16"
)

// Float is the set of element types rows are read from and decoded into.
type Float interface {
	float32 | f16.Bits
}

// ElemType names an element type at runtime.
type ElemType uint8

const (
	Float32 ElemType = iota
	Float16
)

func (e ElemType) String() string {
	switch e {
	case Float32:
		return "f32"
	case Float16:
		return "f16"
	default:
		return "unknown"
	}
}

// Size returns the element size in bytes.
func (e ElemType) Size() int {
	if e == Float16 {
		return f16.Size
	}
	return 4
}

// ElemTypeOf returns the ElemType of T.
func ElemTypeOf[T Float]() ElemType {
	var zero T
	if _, ok := any(zero).(f16.Bits); ok {
		return Float16
	}
	return Float32
}

// widen returns src as float32. Half rows are decoded into scratch.
func widen[T Float](scratch []float32, src []T) []float32 {
	switch s := any(src).(type) {
	case []f16.Bits:
		buf := scratch[:len(s)]
		f16.Decode(buf, s)
		return buf
	default:
		return any(src).([]float32)
	}
}

// target returns the float32 buffer a decoder writes a row of dst into:
// dst itself for float32, scratch otherwise. Pair with commit.
func target[T Float](dst []T, scratch []float32) []float32 {
	if s, ok := any(dst).([]float32); ok {
		return s
	}
	return scratch[:len(dst)]
}

// commit narrows buf into dst when dst is not float32.
func commit[T Float](dst []T, buf []float32) {
	if h, ok := any(dst).([]f16.Bits); ok {
		f16.Encode(h, buf)
	}
}

// scratchFor allocates per-worker float32 rows when T is not float32.
func scratchFor[T Float](workers, width int) []float32 {
	if ElemTypeOf[T]() == Float32 || workers == 0 || width == 0 {
		return nil
	}
	return make([]float32, workers*width)
}

func workerRow(scratch []float32, worker, width int) []float32 {
	if scratch == nil {
		return nil
	}
	return scratch[worker*width : (worker+1)*width]
}

// ScratchBytes returns how much temporary memory a kernel over rows of the
// given width allocates with the given options.
func ScratchBytes[T Float](opt Options, nrows, width int) int64 {
	if ElemTypeOf[T]() == Float32 {
		return 0
	}
	return int64(opt.WorkersFor(nrows)) * int64(width) * 4
}
