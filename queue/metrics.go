package queue

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// queueMetrics holds the OpenTelemetry instruments for one queue. They are created
// once in New and reused for every operation.
type queueMetrics struct {
	// depth tracks operations submitted but not yet finished
	depth metric.Int64UpDownCounter

	// operations counts finished operations by name and outcome
	operations metric.Int64Counter

	// duration records time spent executing each operation, in milliseconds
	duration metric.Float64Histogram
}

func newQueueMetrics(meter metric.Meter) (*queueMetrics, error) {
	m := &queueMetrics{}
	var err error

	m.depth, err = meter.Int64UpDownCounter(
		"callgraph.queue.depth",
		metric.WithDescription("Operations submitted to the write queue and not yet finished"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create depth counter: %w", err)
	}

	m.operations, err = meter.Int64Counter(
		"callgraph.queue.operations",
		metric.WithDescription("Operations executed by the write queue worker"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"callgraph.queue.duration",
		metric.WithDescription("Write queue operation execution time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return m, nil
}

func (m *queueMetrics) submitted(ctx context.Context) {
	m.depth.Add(ctx, 1)
}

func (m *queueMetrics) finished(ctx context.Context, name string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	opts := metric.WithAttributes(
		attribute.String("operation", name),
		attribute.String("outcome", outcome),
	)
	m.depth.Add(ctx, -1)
	m.operations.Add(ctx, 1, opts)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, opts)
}
