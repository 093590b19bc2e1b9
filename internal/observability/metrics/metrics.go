// Package metrics records planning and delivery counters through
// OpenTelemetry. The exporter writes periodic snapshots to a writer (stdout
// in production), and a disabled recorder costs nothing.
package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"pawpal/internal/eventbus"
	"pawpal/internal/notifier"
)

const instrumentationName = "pawpal"

type Config struct {
	Enabled  bool
	Interval time.Duration
	Out      io.Writer
}

// Recorder holds the instruments. A nil *Recorder ignores every call.
type Recorder struct {
	plans         metric.Int64Counter
	placed        metric.Int64Counter
	rejected      metric.Int64Counter
	conflicts     metric.Int64Counter
	completions   metric.Int64Counter
	notifications metric.Int64Counter
	planDuration  metric.Float64Histogram
}

// Setup installs the global meter provider and returns a recorder built on
// it with a shutdown func that flushes the exporter.
func Setup(cfg Config) (*Recorder, func(context.Context) error, error) {
	if !cfg.Enabled {
		r, err := New(noop.NewMeterProvider())
		return r, func(context.Context) error { return nil }, err
	}
	opts := []stdoutmetric.Option{}
	if cfg.Out != nil {
		opts = append(opts, stdoutmetric.WithWriter(cfg.Out))
	}
	exp, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	r, err := New(mp)
	if err != nil {
		return nil, nil, errors.Join(err, mp.Shutdown(context.Background()))
	}
	return r, mp.Shutdown, nil
}

// New creates the instruments on mp.
func New(mp metric.MeterProvider) (*Recorder, error) {
	m := mp.Meter(instrumentationName)
	var (
		r    Recorder
		errs []error
	)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{count}"))
		errs = append(errs, err)
		return c
	}
	r.plans = counter("pawpal.plans", "Plans generated")
	r.placed = counter("pawpal.plan.placed", "Tasks placed in generated plans")
	r.rejected = counter("pawpal.plan.rejected", "Tasks rejected for insufficient time")
	r.conflicts = counter("pawpal.plan.conflicts", "Overlapping placement pairs reported")
	r.completions = counter("pawpal.tasks.completed", "Tasks marked complete")
	r.notifications = counter("pawpal.notifications", "Outbound notifications by outcome")

	h, err := m.Float64Histogram("pawpal.plan.duration",
		metric.WithDescription("Time spent generating a plan"), metric.WithUnit("ms"))
	errs = append(errs, err)
	r.planDuration = h

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Recorder) PlanGenerated(ctx context.Context, owner string, placed, rejected, conflicts int, took time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("owner", owner))
	r.plans.Add(ctx, 1, attrs)
	r.placed.Add(ctx, int64(placed), attrs)
	r.rejected.Add(ctx, int64(rejected), attrs)
	r.conflicts.Add(ctx, int64(conflicts), attrs)
	r.planDuration.Record(ctx, float64(took)/float64(time.Millisecond), attrs)
}

func (r *Recorder) TaskCompleted(ctx context.Context, recurring bool) {
	if r == nil {
		return
	}
	r.completions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("recurring", recurring)))
}

func (r *Recorder) Notification(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Consume counts notifier bus events until ctx ends.
func (r *Recorder) Consume(ctx context.Context, bus eventbus.Bus) {
	if r == nil || bus == nil {
		return
	}
	ch, unsub := bus.Subscribe(64, notifier.EventSent, notifier.EventFailed, notifier.EventDropped, notifier.EventDeduped)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			r.Notification(ctx, outcomeOf(e.Type))
		}
	}
}

func outcomeOf(eventType string) string {
	switch eventType {
	case notifier.EventSent:
		return "sent"
	case notifier.EventFailed:
		return "failed"
	case notifier.EventDropped:
		return "dropped"
	case notifier.EventDeduped:
		return "deduped"
	}
	return "other"
}
