// Package prom exports rowquant call metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	codec, err := rowquant.New(rowquant.WithMetricsCollector(prom.MustNew(reg)))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/rowquant"
)

// Namespace prefixes every metric name.
const Namespace = "rowquant"

// Collector implements rowquant.MetricsCollector with Prometheus vectors
// labelled by op ("encode", "decode"), kind and status.
type Collector struct {
	latency *prometheus.HistogramVec
	calls   *prometheus.CounterVec
	rows    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
}

var _ rowquant.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "call_duration_seconds",
			Help:      "Latency of encode and decode calls",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op", "kind", "status"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "calls_total",
			Help:      "Total encode and decode calls",
		}, []string{"op", "kind", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_total",
			Help:      "Rows processed by successful calls",
		}, []string{"op", "kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "encoded_bytes_total",
			Help:      "Encoded bytes produced or consumed by successful calls",
		}, []string{"op", "kind"}),
	}

	for _, col := range []prometheus.Collector{c.latency, c.calls, c.rows, c.bytes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics if registration fails.
func MustNew(reg prometheus.Registerer) *Collector {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

// RecordEncode implements rowquant.MetricsCollector.
func (c *Collector) RecordEncode(kind rowquant.Kind, rows int, bytes int64, d time.Duration, err error) {
	c.record("encode", kind, rows, bytes, d, err)
}

// RecordDecode implements rowquant.MetricsCollector.
func (c *Collector) RecordDecode(kind rowquant.Kind, rows int, bytes int64, d time.Duration, err error) {
	c.record("decode", kind, rows, bytes, d, err)
}

func (c *Collector) record(op string, kind rowquant.Kind, rows int, bytes int64, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.latency.WithLabelValues(op, string(kind), status).Observe(d.Seconds())
	c.calls.WithLabelValues(op, string(kind), status).Inc()
	if err != nil {
		return
	}
	c.rows.WithLabelValues(op, string(kind)).Add(float64(rows))
	c.bytes.WithLabelValues(op, string(kind)).Add(float64(bytes))
}
