package rowquant

import (
	"log/slog"

	"github.com/hupe1980/rowquant/resource"
	"github.com/hupe1980/rowquant/rowwise"
)

type options struct {
	kernel           rowwise.Options
	metricsCollector MetricsCollector
	logger           *Logger
	resources        *resource.Controller
}

// Option configures a Codec.
type Option func(*options)

// WithWorkers sets the number of workers a call may use.
// 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.kernel.Workers = n
	}
}

// WithLaneWidth sets the lane-group width of the parallel min/max scan.
// It must be a power of two in [1, 64]; 0 derives it from the host CPU.
func WithLaneWidth(w int) Option {
	return func(o *options) {
		o.kernel.LaneWidth = w
	}
}

// WithDirectMaxRows sets the largest row count 8-bit encoding handles in a
// single direct pass. Larger inputs scan every row first and then quantize
// column tiles, which keeps more workers busy on narrow rows. Both paths
// produce identical bytes.
func WithDirectMaxRows(n int) Option {
	return func(o *options) {
		o.kernel.DirectMaxRows = n
	}
}

// WithLaneScanMinCols sets the narrowest row that is scanned with a lane
// group when only a few rows are encoded.
func WithLaneScanMinCols(n int) Option {
	return func(o *options) {
		o.kernel.LaneScanMinCols = n
	}
}

// WithBlockRows sets how many consecutive rows a worker takes at a time.
func WithBlockRows(n int) Option {
	return func(o *options) {
		o.kernel.BlockRows = n
	}
}

// WithTileCols sets the column tile width of the two-pass 8-bit encoder.
func WithTileCols(n int) Option {
	return func(o *options) {
		o.kernel.TileCols = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring calls.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rowquant.BasicMetricsCollector{}
//	c, _ := rowquant.New(rowquant.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Encodes: %d, Avg latency: %dns\n", stats.EncodeCount, stats.EncodeAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for calls.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rowquant.NewJSONLogger(slog.LevelDebug)
//	c, _ := rowquant.New(rowquant.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares worker slots and a scratch memory budget
// between Codecs. A call that cannot get its scratch memory is rejected
// with ErrLaunch.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
