package callgraph

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/feed"
)

// Option configures the runtime collaborators of a Store. Settings that belong in a
// file live in Config instead.
type Option func(*storeOptions)

type storeOptions struct {
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
	clock  func() time.Time
	feed   feed.Client
}

// WithLogger sets a custom logger for the store, its queue and its graph.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Every queued write gets one span.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *storeOptions) {
		o.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for the write queue instruments.
func WithMeter(meter metric.Meter) Option {
	return func(o *storeOptions) {
		o.meter = meter
	}
}

// WithClock overrides the clock used to timestamp nodes and relationships.
func WithClock(clock func() time.Time) Option {
	return func(o *storeOptions) {
		o.clock = clock
	}
}

// WithFeed publishes a change event for every queued write to client. The store does
// not close a feed passed this way. Without this option a feed is only created when
// the config enables one.
func WithFeed(client feed.Client) Option {
	return func(o *storeOptions) {
		o.feed = client
	}
}
