package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/streamkit/streams"
)

// Terminal outcomes recorded by StreamMetrics.
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
	OutcomeCancel   = "cancel"
)

// StreamMetrics holds metric instruments for stream delivery: values and
// batches flowing downstream, terminal outcomes, and requested demand.
type StreamMetrics struct {
	valuesTotal    metric.Int64Counter
	batchesTotal   metric.Int64Counter
	terminalsTotal metric.Int64Counter
	demandTotal    metric.Int64Counter
}

// NewStreamMetrics creates stream metric instruments on the given meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	valuesTotal, err := meter.Int64Counter("stream.values.total",
		metric.WithDescription("Total values delivered downstream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.values.total counter: %w", err)
	}

	batchesTotal, err := meter.Int64Counter("stream.batches.total",
		metric.WithDescription("Total batches consumed from upstream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.batches.total counter: %w", err)
	}

	terminalsTotal, err := meter.Int64Counter("stream.terminals.total",
		metric.WithDescription("Terminal outcomes by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.terminals.total counter: %w", err)
	}

	demandTotal, err := meter.Int64Counter("stream.demand.total",
		metric.WithDescription("Demand requested by downstream consumers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.demand.total counter: %w", err)
	}

	return &StreamMetrics{
		valuesTotal:    valuesTotal,
		batchesTotal:   batchesTotal,
		terminalsTotal: terminalsTotal,
		demandTotal:    demandTotal,
	}, nil
}

// RecordValue counts one value delivered on the named stream.
func (m *StreamMetrics) RecordValue(ctx context.Context, stream string) {
	m.valuesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stream", stream),
	))
}

// RecordBatch counts one batch consumed on the named stream.
func (m *StreamMetrics) RecordBatch(ctx context.Context, stream string) {
	m.batchesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stream", stream),
	))
}

// RecordTerminal counts a terminal outcome (complete, error or cancel).
func (m *StreamMetrics) RecordTerminal(ctx context.Context, stream, outcome string) {
	m.terminalsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stream", stream),
		attribute.String("outcome", outcome),
	))
}

// RecordDemand records requested demand on the named stream. An unbounded
// request counts as 1 with the unbounded attribute; invalid demand is not
// recorded (the resulting error terminal is).
func (m *StreamMetrics) RecordDemand(ctx context.Context, stream string, n int64) {
	if n <= 0 {
		return
	}
	if n == streams.Unbounded {
		m.demandTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stream", stream),
			attribute.Bool("unbounded", true),
		))
		return
	}
	m.demandTotal.Add(ctx, n, metric.WithAttributes(
		attribute.String("stream", stream),
	))
}

// Instrument wraps a publisher so values, terminal outcomes and requested
// demand on the named stream are recorded. Delivery semantics are untouched:
// every signal and error return is forwarded as-is.
func Instrument[T any](ctx context.Context, source streams.Publisher[T], metrics *StreamMetrics, stream string) streams.Publisher[T] {
	return &instrumentedPublisher[T]{ctx: ctx, source: source, metrics: metrics, stream: stream}
}

type instrumentedPublisher[T any] struct {
	ctx     context.Context
	source  streams.Publisher[T]
	metrics *StreamMetrics
	stream  string
}

func (p *instrumentedPublisher[T]) Subscribe(s streams.Subscriber[T]) {
	p.source.Subscribe(&instrumentedSubscriber[T]{
		ctx:        p.ctx,
		downstream: s,
		metrics:    p.metrics,
		stream:     p.stream,
	})
}

type instrumentedSubscriber[T any] struct {
	ctx        context.Context
	downstream streams.Subscriber[T]
	metrics    *StreamMetrics
	stream     string
	sub        *instrumentedSubscription
}

func (s *instrumentedSubscriber[T]) OnSubscribe(sub streams.Subscription) {
	s.sub = &instrumentedSubscription{
		ctx:      s.ctx,
		upstream: sub,
		metrics:  s.metrics,
		stream:   s.stream,
	}
	s.downstream.OnSubscribe(s.sub)
}

func (s *instrumentedSubscriber[T]) OnNext(v T) error {
	s.metrics.RecordValue(s.ctx, s.stream)
	return s.downstream.OnNext(v)
}

func (s *instrumentedSubscriber[T]) OnComplete() error {
	s.markTerminated()
	s.metrics.RecordTerminal(s.ctx, s.stream, OutcomeComplete)
	return s.downstream.OnComplete()
}

func (s *instrumentedSubscriber[T]) OnError(err error) error {
	s.markTerminated()
	s.metrics.RecordTerminal(s.ctx, s.stream, OutcomeError)
	return s.downstream.OnError(err)
}

// markTerminated keeps a later Cancel (common during cleanup) from being
// recorded as a cancel outcome on an already-terminated stream.
func (s *instrumentedSubscriber[T]) markTerminated() {
	if s.sub != nil {
		s.sub.terminated = true
	}
}

type instrumentedSubscription struct {
	ctx        context.Context
	upstream   streams.Subscription
	metrics    *StreamMetrics
	stream     string
	cancelled  bool
	terminated bool
}

func (s *instrumentedSubscription) Request(n int64) error {
	s.metrics.RecordDemand(s.ctx, s.stream, n)
	return s.upstream.Request(n)
}

func (s *instrumentedSubscription) Cancel() {
	if !s.cancelled && !s.terminated {
		s.cancelled = true
		s.metrics.RecordTerminal(s.ctx, s.stream, OutcomeCancel)
	}
	s.upstream.Cancel()
}
