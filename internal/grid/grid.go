// Package grid runs row kernels on a fixed set of workers.
//
// Work is split into blocks of consecutive indices. Worker w handles blocks
// w, w+W, w+2W, ... so each worker advances by a constant increment of
// W*BlockSize indices, regardless of how large the input is. Every index is
// visited by exactly one worker.
package grid

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrLaunchFailed is returned when a worker aborts. Outputs of a failed run
// are undefined.
var ErrLaunchFailed = errors.New("launch failed")

// Grid describes a launch.
type Grid struct {
	// Workers is the number of concurrent workers. If <= 0, GOMAXPROCS is used.
	Workers int
	// BlockSize is the number of consecutive indices per block. If <= 0, 1.
	BlockSize int
}

// Kernel processes indices [start, end) on behalf of worker.
type Kernel func(worker, start, end int)

func (g Grid) sizes(n int) (workers, block, blocks int) {
	block = max(g.BlockSize, 1)
	blocks = (n + block - 1) / block
	workers = g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return min(workers, blocks), block, blocks
}

// WorkersFor returns the number of workers a launch over n indices starts.
func (g Grid) WorkersFor(n int) int {
	if n <= 0 {
		return 0
	}
	w, _, _ := g.sizes(n)
	return w
}

// Increment returns the per-step advance of each worker for n indices.
func (g Grid) Increment(n int) int {
	w, block, _ := g.sizes(n)
	return w * block
}

// Run executes k over [0, n). It returns only after every worker has
// stopped. A panicking kernel fails the whole launch with ErrLaunchFailed.
func (g Grid) Run(n int, k Kernel) error {
	if n <= 0 {
		return nil
	}
	workers, block, blocks := g.sizes(n)

	if workers == 1 {
		return run(0, 1, block, blocks, n, k)
	}

	var eg errgroup.Group
	for w := range workers {
		eg.Go(func() error {
			return run(w, workers, block, blocks, n, k)
		})
	}
	return eg.Wait()
}

func run(w, workers, block, blocks, n int, k Kernel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d: %v", ErrLaunchFailed, w, r)
		}
	}()
	for b := w; b < blocks; b += workers {
		start := b * block
		k(w, start, min(start+block, n))
	}
	return nil
}
