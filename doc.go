// Package rowquant compresses rows of embedding tables into compact
// fixed-width codes and reconstructs floating point values from them.
//
// Every row is quantized independently with its own affine (scale, bias)
// transform stored in a small trailer after the row's codes, so tables whose
// rows span very different ranges keep a bounded per-row error.
//
// # Quick Start
//
//	ctx := context.Background()
//	c, _ := rowquant.New()
//
//	table := rowquant.NewTensor(values, nrows, ncols)
//	enc, _ := rowquant.Encode8(ctx, c, table)           // [nrows, align4(ncols)+8]
//	dec, _ := rowquant.Decode8[float32](ctx, c, enc)    // [nrows, align4(ncols)]
//
// # Formats
//
//   - 8-bit: one byte per element, float32 (scale, bias) trailer at a 4-byte
//     aligned offset. See Encode8, Decode8 and DecodeMixed8.
//   - 4-bit and 2-bit: codes packed low field first, half precision
//     (scale, bias) trailer. See EncodeNBit and DecodeNBit.
//   - FP8 rowwise: HFP8 codes of rows scaled to the format's largest
//     magnitude, float32 scale trailer. See EncodeFP8 and DecodeFP8.
//   - HFP8: context-free 8-bit floats. See Codec.EncodeHFP8 and the hfp8
//     package.
//
// Rows may be float32 or half precision (f16.Bits), in and out.
//
// # Errors
//
// Invalid arguments are rejected before any worker starts and match
// ErrContractViolation; rank, shape and alignment problems are also
// reported as *ErrInvalidRank, *ErrShapeMismatch and *ErrColumnAlignment.
// Failures after launch match ErrLaunch. Nothing is retried.
//
// # Observability and Limits
//
// WithLogger, WithMetricsCollector and WithResourceController attach
// structured logging, call metrics (see metric/prom for Prometheus) and
// shared worker and memory limits. Encoded tables can be persisted with the
// tablefile package.
package rowquant
