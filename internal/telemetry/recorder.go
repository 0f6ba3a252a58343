// Package telemetry publishes pool, cache, and vector-index statistics as
// OpenTelemetry instruments. A Recorder is constructed explicitly by the
// caller (cmd/server) and attached to the memory facade via
// memory.Service.WithRecorder — there is no global meter provider
// singleton, per the "Global/process state" design note.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Recorder publishes gauge-style observations for the three stats
// snapshots the facade aggregates via GetStats.
type Recorder struct {
	poolActive   metric.Int64Gauge
	poolIdle     metric.Int64Gauge
	poolWaiting  metric.Int64Gauge
	cacheHitRate metric.Float64Gauge
	cacheSize    metric.Int64Gauge
	indexTotal   metric.Int64Gauge
	indexVectors metric.Int64Gauge
}

// NewRecorder builds a Recorder from the given meter. Passing
// noop.NewMeterProvider().Meter("") yields a Recorder whose calls are
// no-ops, which is what cmd/* should do when no collector is configured.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	var r Recorder
	var err error

	if r.poolActive, err = meter.Int64Gauge("memvault.pool.active_connections"); err != nil {
		return nil, err
	}
	if r.poolIdle, err = meter.Int64Gauge("memvault.pool.idle_connections"); err != nil {
		return nil, err
	}
	if r.poolWaiting, err = meter.Int64Gauge("memvault.pool.waiting_requests"); err != nil {
		return nil, err
	}
	if r.cacheHitRate, err = meter.Float64Gauge("memvault.cache.hit_rate"); err != nil {
		return nil, err
	}
	if r.cacheSize, err = meter.Int64Gauge("memvault.cache.size"); err != nil {
		return nil, err
	}
	if r.indexTotal, err = meter.Int64Gauge("memvault.index.total_rows"); err != nil {
		return nil, err
	}
	if r.indexVectors, err = meter.Int64Gauge("memvault.index.embedded_rows"); err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordPool publishes a pool occupancy sample.
func (r *Recorder) RecordPool(ctx context.Context, active, idle, waiting int64) {
	r.poolActive.Record(ctx, active)
	r.poolIdle.Record(ctx, idle)
	r.poolWaiting.Record(ctx, waiting)
}

// RecordCache publishes a cache stats sample.
func (r *Recorder) RecordCache(ctx context.Context, size int64, hitRate float64) {
	r.cacheSize.Record(ctx, size)
	r.cacheHitRate.Record(ctx, hitRate)
}

// RecordIndex publishes a vector-index stats sample.
func (r *Recorder) RecordIndex(ctx context.Context, total, embedded int64) {
	r.indexTotal.Record(ctx, total)
	r.indexVectors.Record(ctx, embedded)
}
