package consumer

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/generic"
)

// Metrics counts what a Task does with the records it fetches.
type Metrics struct {
	Applied     metrics.Counter
	Skipped     metrics.Counter
	Stale       metrics.Counter
	Idle        metrics.Counter
	FetchErrors metrics.Counter
	Failovers   metrics.Counter
	Offset      metrics.Gauge
}

// NewMetrics returns in-process metrics whose values can be read back through the
// generic package types.
func NewMetrics() *Metrics {
	return &Metrics{
		Applied:     generic.NewCounter("records_applied"),
		Skipped:     generic.NewCounter("records_skipped"),
		Stale:       generic.NewCounter("records_stale"),
		Idle:        generic.NewCounter("idle_backoffs"),
		FetchErrors: generic.NewCounter("fetch_errors"),
		Failovers:   generic.NewCounter("failovers"),
		Offset:      generic.NewGauge("read_offset"),
	}
}

// NopMetrics discards everything.
func NopMetrics() *Metrics {
	return &Metrics{
		Applied:     discard.NewCounter(),
		Skipped:     discard.NewCounter(),
		Stale:       discard.NewCounter(),
		Idle:        discard.NewCounter(),
		FetchErrors: discard.NewCounter(),
		Failovers:   discard.NewCounter(),
		Offset:      discard.NewGauge(),
	}
}
