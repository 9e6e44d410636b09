// Package rowwise implements rowwise quantization of embedding tables.
//
// Every row of a table is quantized on its own: the row's minimum and maximum
// define an affine (scale, bias) transform that maps the row into a small
// integer code space, and the transform is stored as a trailer behind the
// row's codes.
//
// # Formats
//
//	8-bit:  [ncols codes][pad to 4][scale f32][bias f32]     stride align4(ncols)+8
//	nbit:   [ncols/(8/bits) bytes][scale f16][bias f16]      stride ncols*bits/8+4
//	FP8:    [ncols hfp8 codes][pad to 4][scale f32][0 f32]    stride align4(ncols)+8
//
// Sub-byte codes are packed low-order field first. Multi-byte trailer values
// are little-endian.
//
// # Execution
//
// Rows are independent, so kernels run on a fixed grid of workers that stride
// over blocks of rows (see Options). Row extrema come from one of two
// strategies: a fused serial scan, or a lane group whose partial extrema are
// combined by a butterfly exchange. Both yield identical results; the choice
// only affects how work is spread.
//
// Functions in this package never allocate their outputs. Callers size dst
// with the *Cols helpers.
package rowwise
