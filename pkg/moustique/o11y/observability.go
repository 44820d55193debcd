// Package o11y holds the metrics and tracing abstractions used by the client.
// Providers are optional; a nil provider disables the corresponding signal.
package o11y

import (
	"context"
	"time"
)

// MetricsProvider abstracts metrics collection (OpenTelemetry, Prometheus, ...).
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// TracingProvider abstracts distributed tracing.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Span is a unit of work in a trace.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a key-value pair attached to metrics and spans.
type Label struct {
	Key   string
	Value string
}

type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// Metric names recorded by the client.
const (
	MetricRequests          = "moustique.client.requests"
	MetricFailures          = "moustique.client.failures"
	MetricRequestDuration   = "moustique.client.request.duration_ms"
	MetricMessagesDelivered = "moustique.client.messages.delivered"
	MetricRetries           = "moustique.client.retries"
)

// ClientInstruments is the set of instruments one client records into.
type ClientInstruments struct {
	tracing   TracingProvider
	requests  Counter
	failures  Counter
	duration  Histogram
	delivered Counter
	retries   Counter
}

// NewClientInstruments creates the client's instruments. Either provider may be nil.
func NewClientInstruments(metrics MetricsProvider, tracing TracingProvider) *ClientInstruments {
	i := &ClientInstruments{tracing: tracing}
	if metrics != nil {
		i.requests = metrics.Counter(MetricRequests)
		i.failures = metrics.Counter(MetricFailures)
		i.duration = metrics.Histogram(MetricRequestDuration)
		i.delivered = metrics.Counter(MetricMessagesDelivered)
		i.retries = metrics.Counter(MetricRetries)
	}
	return i
}

// Request tracks one broker round trip.
type Request struct {
	inst  *ClientInstruments
	ctx   context.Context
	op    string
	start time.Time
	span  Span
}

// StartRequest begins observing a round trip for op. The returned context
// carries the span, if tracing is enabled.
func (i *ClientInstruments) StartRequest(ctx context.Context, op string) (context.Context, *Request) {
	r := &Request{inst: i, op: op, start: time.Now()}
	if i.tracing != nil {
		ctx, r.span = i.tracing.StartSpan(ctx, "moustique."+op)
		r.span.SetAttributes(Label{Key: "moustique.operation", Value: op})
	}
	r.ctx = ctx
	return ctx, r
}

// End finishes the observation; err is nil on success.
func (r *Request) End(err error) {
	op := Label{Key: "operation", Value: r.op}
	elapsed := float64(time.Since(r.start)) / float64(time.Millisecond)

	if r.inst.requests != nil {
		r.inst.requests.Add(r.ctx, 1, op)
	}
	if r.inst.duration != nil {
		r.inst.duration.Record(r.ctx, elapsed, op)
	}
	if err != nil && r.inst.failures != nil {
		r.inst.failures.Add(r.ctx, 1, op)
	}

	if r.span != nil {
		if err != nil {
			r.span.SetStatus(SpanStatusError, err.Error())
		} else {
			r.span.SetStatus(SpanStatusOK, "")
		}
		r.span.End()
	}
}

// Delivered counts messages handed to handlers for topic.
func (i *ClientInstruments) Delivered(ctx context.Context, topic string, n int) {
	if i.delivered != nil && n > 0 {
		i.delivered.Add(ctx, int64(n), Label{Key: "topic", Value: topic})
	}
}

// Retry counts a repeated attempt against endpoint.
func (i *ClientInstruments) Retry(ctx context.Context, endpoint string) {
	if i.retries != nil {
		i.retries.Add(ctx, 1, Label{Key: "endpoint", Value: endpoint})
	}
}
