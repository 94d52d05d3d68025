package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/health"
)

var (
	// ErrNotStarted is returned when submitting to a queue that has not been started.
	ErrNotStarted = errors.New("queue not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("queue already started")

	// ErrStopped is returned when submitting to or starting a stopped queue.
	ErrStopped = errors.New("queue stopped")

	// ErrStopTimeout is returned by Stop when the worker did not finish in time. The
	// worker keeps draining in the background.
	ErrStopTimeout = errors.New("queue stop timed out")

	// ErrOperationPanic resolves the pending result of an operation that panicked.
	ErrOperationPanic = errors.New("queued operation panicked")
)

type state int

const (
	stateNew state = iota
	stateRunning
	stateStopping
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Completion describes a finished operation. It is passed to the completion hook.
type Completion struct {
	ID        string
	Name      string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	onComplete func(ctx context.Context, c Completion)
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for one span per operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMeter sets the meter used for queue depth, operation count and duration.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithOnComplete registers a hook the worker calls after each operation, before the
// operation counts as drained. The hook runs on the worker goroutine and must not
// submit to the same queue and wait.
func WithOnComplete(fn func(ctx context.Context, c Completion)) Option {
	return func(o *options) {
		o.onComplete = fn
	}
}

type request[T any] struct {
	id       string
	name     string
	ctx      context.Context
	enqueued time.Time
	run      func(ctx context.Context, target T) error
	fail     func(err error)
}

// Queue turns many concurrent producers into one consumer. Operations run one at a
// time, in submission order, on a single worker goroutine that owns the target.
//
// The queue is unbounded and has no priorities or batching. A failing or panicking
// operation resolves only its own Pending; the worker carries on with the next one.
type Queue[T any] struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *queueMetrics
	onComplete func(ctx context.Context, c Completion)

	mu          sync.Mutex
	state       state
	target      T
	items       []*request[T]
	outstanding int
	idle        chan struct{}
	signal      chan struct{}
	done        chan struct{}
}

// New creates an inert queue. Call Start to bind a target and launch the worker.
func New[T any](opts ...Option) (*Queue[T], error) {
	o := options{
		logger: slog.Default(),
		tracer: tracenoop.NewTracerProvider().Tracer("callgraph/queue"),
		meter:  metricnoop.NewMeterProvider().Meter("callgraph/queue"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	metrics, err := newQueueMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	idle := make(chan struct{})
	close(idle)

	return &Queue[T]{
		logger:     o.logger.With("component", "queue"),
		tracer:     o.tracer,
		metrics:    metrics,
		onComplete: o.onComplete,
		idle:       idle,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start binds the target every operation receives and launches the worker.
func (q *Queue[T]) Start(target T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.state {
	case stateNew:
	case stateRunning:
		return ErrAlreadyStarted
	default:
		return ErrStopped
	}

	q.target = target
	q.state = stateRunning
	go q.run()

	q.logger.Debug("queue started")
	return nil
}

// Submit appends an operation to q and returns its pending result. fn runs on the
// worker with a context that keeps ctx's values but not its cancellation: once
// submitted, an operation always runs to completion.
func Submit[T, R any](ctx context.Context, q *Queue[T], name string, fn func(ctx context.Context, target T) (R, error)) (*Pending[R], error) {
	p := newPending[R](uuid.NewString(), name)
	req := &request[T]{
		id:       p.id,
		name:     name,
		ctx:      context.WithoutCancel(ctx),
		enqueued: time.Now(),
		run: func(ctx context.Context, target T) error {
			v, err := fn(ctx, target)
			p.resolve(v, err)
			return err
		},
		fail: func(err error) {
			var zero R
			p.resolve(zero, err)
		},
	}

	if err := q.enqueue(ctx, req); err != nil {
		return nil, err
	}
	return p, nil
}

func (q *Queue[T]) enqueue(ctx context.Context, req *request[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.state {
	case stateRunning:
	case stateNew:
		return ErrNotStarted
	default:
		return ErrStopped
	}

	q.items = append(q.items, req)
	q.outstanding++
	if q.outstanding == 1 {
		q.idle = make(chan struct{})
	}
	q.metrics.submitted(ctx)
	q.wake()

	q.logger.Debug("operation queued", "op", req.name, "id", req.id, "depth", len(q.items))
	return nil
}

// wake nudges the worker. Must be called with q.mu held.
func (q *Queue[T]) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for {
		req, ok := q.next()
		if !ok {
			q.logger.Debug("queue worker exiting")
			return
		}
		q.execute(req)
	}
}

// next blocks until a request is available. It returns false once the queue is
// stopping and empty.
func (q *Queue[T]) next() (*request[T], bool) {
	q.mu.Lock()
	for {
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return req, true
		}
		if q.state != stateRunning {
			q.state = stateStopped
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.signal
		q.mu.Lock()
	}
}

func (q *Queue[T]) execute(req *request[T]) {
	started := time.Now()
	ctx, span := q.tracer.Start(req.ctx, "callgraph.queue."+req.name,
		trace.WithAttributes(
			attribute.String("queue.request_id", req.id),
			attribute.String("queue.operation", req.name),
			attribute.Int64("queue.wait_ms", started.Sub(req.enqueued).Milliseconds()),
		),
	)

	err := q.invoke(ctx, req)
	elapsed := time.Since(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		q.logger.Debug("queued operation failed", "op", req.name, "id", req.id, "error", err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	q.metrics.finished(ctx, req.name, elapsed, err)

	if q.onComplete != nil {
		q.notify(ctx, Completion{ID: req.id, Name: req.name, Err: err, StartedAt: started, Duration: elapsed})
	}

	q.mu.Lock()
	q.outstanding--
	if q.outstanding == 0 {
		close(q.idle)
	}
	q.mu.Unlock()
}

// invoke runs one operation, converting a panic into an error on its own pending.
func (q *Queue[T]) invoke(ctx context.Context, req *request[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrOperationPanic, req.name, r)
			q.logger.Error("queued operation panicked",
				"op", req.name, "id", req.id, "panic", r, "stack", string(debug.Stack()))
			req.fail(err)
		}
	}()
	return req.run(ctx, q.target)
}

func (q *Queue[T]) notify(ctx context.Context, c Completion) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("completion hook panicked", "op", c.Name, "id", c.ID, "panic", r)
		}
	}()
	q.onComplete(ctx, c)
}

// Drain blocks until every submitted operation has finished or timeout elapses, and
// reports whether the queue was drained. A timeout of zero or less only checks.
func (q *Queue[T]) Drain(timeout time.Duration) bool {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	if timeout <= 0 {
		select {
		case <-idle:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}

// Stop stops accepting operations, lets the worker finish everything already queued
// and waits for it to exit, for at most timeout. Stop is idempotent.
func (q *Queue[T]) Stop(timeout time.Duration) error {
	q.mu.Lock()
	switch q.state {
	case stateNew:
		q.state = stateStopped
		close(q.done)
		q.mu.Unlock()
		return nil
	case stateRunning:
		q.state = stateStopping
		q.wake()
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.done:
		q.logger.Debug("queue stopped")
		return nil
	case <-timer.C:
		q.logger.Warn("queue stop timed out", "timeout", timeout, "remaining", q.Len())
		return ErrStopTimeout
	}
}

// Len returns the number of operations waiting to run, excluding one in flight.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Running reports whether the queue accepts operations.
func (q *Queue[T]) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == stateRunning
}

// Health reports the worker state and backlog.
func (q *Queue[T]) Health() health.Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	details := map[string]any{
		"state":       q.state.String(),
		"queued":      len(q.items),
		"outstanding": q.outstanding,
	}
	switch q.state {
	case stateRunning:
		return health.Status{Status: health.StatusHealthy, Message: "queue running", Details: details}
	case stateStopping:
		return health.Degraded("queue stopping", details)
	default:
		return health.Unhealthy(fmt.Sprintf("queue %s", q.state), details)
	}
}
