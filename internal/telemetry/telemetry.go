// Package telemetry wires OpenTelemetry counters and histograms over the
// kernel's dispatch loop: events dispatched, clock-advance deltas, and
// pending-queue depth. No OTLP exporter is configured here — the
// simulator has no network boundary of its own to ship metrics across,
// so a manual reader is used and the caller decides how (or whether) to
// collect from it.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
)

// Recorder holds the instruments the simulator reports against, and the
// manual reader they can be collected from.
type Recorder struct {
	reader *sdkmetric.ManualReader
	meter  metric.Meter

	eventsDispatched metric.Int64Counter
	clockAdvance     metric.Float64Histogram
	queueDepth       metric.Int64ObservableGauge

	depthProvider func() int64
}

// New constructs a Recorder with its own manual-reader MeterProvider,
// independent of any process-wide global provider.
func New() *Recorder {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("backtester/kernel")

	r := &Recorder{reader: reader, meter: meter}

	r.eventsDispatched, _ = meter.Int64Counter("kernel.events.dispatched",
		metric.WithDescription("Number of events dispatched by the kernel"),
		metric.WithUnit("{event}"))
	r.clockAdvance, _ = meter.Float64Histogram("kernel.clock.advance",
		metric.WithDescription("Virtual-clock advance per dispatched event"),
		metric.WithUnit("s"))
	r.queueDepth, _ = meter.Int64ObservableGauge("kernel.queue.depth",
		metric.WithDescription("Pending events in the kernel's priority queue"),
		metric.WithUnit("{event}"))

	_, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if r.depthProvider != nil {
			o.ObserveInt64(r.queueDepth, r.depthProvider())
		}
		return nil
	}, r.queueDepth)

	return r
}

// SetQueueDepthProvider wires f as the source of the queue-depth gauge's
// value, sampled whenever metrics are collected.
func (r *Recorder) SetQueueDepthProvider(f func() int64) {
	r.depthProvider = f
}

// Collect gathers the current metric snapshot from the manual reader.
func (r *Recorder) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := r.reader.Collect(ctx, &rm)
	return rm, err
}

// Attach subscribes to every event type in types, recording a dispatch
// count and a clock-advance sample (the delta from the previously
// dispatched event) for each one.
func (r *Recorder) Attach(k *kernel.Kernel, types []event.Type) {
	var lastTime time.Time
	haveLast := false
	for _, typ := range types {
		k.Subscribe(typ, func(ctx context.Context, evt *event.Event) error {
			r.eventsDispatched.Add(ctx, 1, metric.WithAttributes(
				attribute.String("event_type", string(evt.Type))))
			if haveLast {
				r.clockAdvance.Record(ctx, evt.Time.Sub(lastTime).Seconds())
			}
			lastTime = evt.Time
			haveLast = true
			return nil
		})
	}
}
