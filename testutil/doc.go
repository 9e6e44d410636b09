// Package testutil provides deterministic table generators for tests and
// benchmarks.
//
//	rng := testutil.NewRNG(seed)
//	table := rng.UniformTable(nrows, ncols, -1, 1)   // row-major float32
//	half := testutil.ToHalf(table)                   // same values as f16.Bits
//
// Tables are flat row-major slices, the layout every rowwise kernel takes.
package testutil
