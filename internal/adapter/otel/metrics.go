package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "quakefeed"

// Metrics holds all quakefeed metric instruments.
type Metrics struct {
	FramesBroadcast   metric.Int64Counter
	CommandsProcessed metric.Int64Counter
	FrameBytes        metric.Int64Histogram
	RunDuration       metric.Float64Histogram
}

// NewMetrics creates all metric instruments. Instruments stay valid but
// record nothing when telemetry is disabled.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.FramesBroadcast, err = meter.Int64Counter("quakefeed.frames.broadcast",
		metric.WithDescription("Number of frames broadcast to observers"))
	if err != nil {
		return nil, err
	}

	m.CommandsProcessed, err = meter.Int64Counter("quakefeed.commands.processed",
		metric.WithDescription("Number of observer commands processed"))
	if err != nil {
		return nil, err
	}

	m.FrameBytes, err = meter.Int64Histogram("quakefeed.frame.bytes",
		metric.WithDescription("Encoded frame size in bytes"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("quakefeed.run.duration_seconds",
		metric.WithDescription("Duration of push_all runs in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RegisterObserverGauge reports the current observer count through an
// observable gauge. connected is sampled at collection time.
func RegisterObserverGauge(connected func() int) error {
	meter := otel.Meter(meterName)
	gauge, err := meter.Int64ObservableGauge("quakefeed.observers.connected",
		metric.WithDescription("Number of connected observers"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(connected()))
		return nil
	}, gauge)
	return err
}
