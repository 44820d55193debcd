// Package otel implements the o11y interfaces on top of OpenTelemetry.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/tsarna/moustique/pkg/moustique/o11y"
)

// Provider implements both o11y.MetricsProvider and o11y.TracingProvider.
// Instruments are created once per name and reused.
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer

	mu         sync.Mutex
	counters   map[string]o11y.Counter
	histograms map[string]o11y.Histogram
}

type Option func(*options)

type options struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider uses mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// NewProvider creates a provider whose instrumentation scope is serviceName.
func NewProvider(serviceName, serviceVersion string, opts ...Option) *Provider {
	o := options{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Provider{
		meter:      o.meterProvider.Meter(serviceName, metric.WithInstrumentationVersion(serviceVersion)),
		tracer:     o.tracerProvider.Tracer(serviceName, trace.WithInstrumentationVersion(serviceVersion)),
		counters:   make(map[string]o11y.Counter),
		histograms: make(map[string]o11y.Histogram),
	}
}

// Counter implements o11y.MetricsProvider.
func (p *Provider) Counter(name string) o11y.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c
	}

	counter, err := p.meter.Int64Counter(name)
	if err != nil {
		otel.Handle(err)
		counter, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter(name)
	}

	c := &counterAdapter{counter: counter}
	p.counters[name] = c
	return c
}

// Histogram implements o11y.MetricsProvider.
func (p *Provider) Histogram(name string) o11y.Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.histograms[name]; ok {
		return h
	}

	histogram, err := p.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		otel.Handle(err)
		histogram, _ = metricnoop.NewMeterProvider().Meter("").Float64Histogram(name)
	}

	h := &histogramAdapter{histogram: histogram}
	p.histograms[name] = h
	return h
}

// StartSpan implements o11y.TracingProvider.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &spanAdapter{span: span}
}

func attributes(labels []o11y.Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label.Key, label.Value)
	}
	return attrs
}

type counterAdapter struct {
	counter metric.Int64Counter
}

func (c *counterAdapter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.counter.Add(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type histogramAdapter struct {
	histogram metric.Float64Histogram
}

func (h *histogramAdapter) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type spanAdapter struct {
	span trace.Span
}

func (s *spanAdapter) SetAttributes(labels ...o11y.Label) {
	s.span.SetAttributes(attributes(labels)...)
}

func (s *spanAdapter) SetStatus(code o11y.SpanStatusCode, description string) {
	switch code {
	case o11y.SpanStatusOK:
		s.span.SetStatus(codes.Ok, description)
	case o11y.SpanStatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *spanAdapter) End() {
	s.span.End()
}
