// Package resource bounds what quantization calls may consume.
//
// A Controller governs three resources:
//
//   - Workers: concurrent kernel workers shared by all calls (blocking)
//   - Memory: scratch memory reserved by kernels (non-blocking, fail-fast)
//   - IO: bytes per second moved by table file persistence (token bucket)
//
//	rc := resource.NewController(resource.Config{
//	    MaxWorkers:         8,
//	    MemoryLimitBytes:   64 << 20,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//
//	n, err := rc.AcquireWorkers(ctx, 16) // n <= 8
//	if err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorkers(n)
//
//	if err := rc.AcquireMemory(scratch); err != nil {
//	    // ErrMemoryLimitExceeded: the call is rejected
//	}
//	defer rc.ReleaseMemory(scratch)
//
// All methods are safe for concurrent use and a nil *Controller imposes no
// limits.
package resource
