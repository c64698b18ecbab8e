package transportlayer

import (
	"context"
	"time"

	gokitendpoint "github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/tracing/opentracing"
	opentracinggo "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// StatusTag is the span tag holding the outcome of a node call.
const StatusTag = "ledger.status"

// OutcomeError labels a call that failed before the node answered.
const OutcomeError = "ERROR"

type Endpoint interface {
	// Name is the proto.Method the endpoint serves.
	Name() string
	Fn() gokitendpoint.Endpoint
	// Converters hold transport specific codecs, e.g. a gRPC converter.
	Converters() []interface{}
}

// EndpointOption decorates an endpoint. Options apply in order, so the
// first option wraps the raw endpoint and the last one runs first.
type EndpointOption func(*endpoint)

type endpoint struct {
	method     string
	fn         gokitendpoint.Endpoint
	converters []interface{}
}

func NewEndpoint(method string, fn gokitendpoint.Endpoint, options ...EndpointOption) Endpoint {
	e := &endpoint{method: method, fn: fn}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *endpoint) Name() string { return e.method }

func (e *endpoint) Fn() gokitendpoint.Endpoint { return e.fn }

func (e *endpoint) Converters() []interface{} { return e.converters }

func WithConverter(c interface{}) EndpointOption {
	return func(e *endpoint) {
		e.converters = append(e.converters, c)
	}
}

func WithMiddleware(mw gokitendpoint.Middleware) EndpointOption {
	return func(e *endpoint) {
		e.fn = mw(e.fn)
	}
}

// Outcome is OutcomeError when err is set, the precheck status of a
// *proto.Response otherwise.
func Outcome(resp interface{}, err error) string {
	if err != nil {
		return OutcomeError
	}
	if r, ok := resp.(*proto.Response); ok {
		if h := r.Header(); h != nil {
			return h.Status.String()
		}
	}
	return proto.StatusOK.String()
}

// WithLogger logs every call at debug level, or at warn level when the
// transport failed.
func WithLogger(l log.Logger) EndpointOption {
	return func(e *endpoint) {
		logger := log.With(l, "method", e.method)
		next := e.fn

		e.fn = func(ctx context.Context, request interface{}) (resp interface{}, err error) {
			defer func(begin time.Time) {
				if err != nil {
					_ = level.Warn(logger).Log("status", OutcomeError, "err", err, "took", time.Since(begin))
					return
				}
				_ = level.Debug(logger).Log("status", Outcome(resp, nil), "took", time.Since(begin))
			}(time.Now())
			return next(ctx, request)
		}
	}
}

// WithDuration observes call latency labelled by method and outcome.
func WithDuration(d metrics.Histogram) EndpointOption {
	return func(e *endpoint) {
		histogram := d.With("method", e.method)
		next := e.fn

		e.fn = func(ctx context.Context, request interface{}) (resp interface{}, err error) {
			defer func(begin time.Time) {
				histogram.With("status", Outcome(resp, err)).Observe(time.Since(begin).Seconds())
			}(time.Now())
			return next(ctx, request)
		}
	}
}

// WithTrace opens a client span named after the method and tags it with
// the outcome of the call.
func WithTrace(tracer opentracinggo.Tracer) EndpointOption {
	return func(e *endpoint) {
		next := e.fn
		tagged := func(ctx context.Context, request interface{}) (interface{}, error) {
			resp, err := next(ctx, request)
			if span := opentracinggo.SpanFromContext(ctx); span != nil {
				span.SetTag(StatusTag, Outcome(resp, err))
				if err != nil {
					ext.Error.Set(span, true)
				}
			}
			return resp, err
		}
		e.fn = opentracing.TraceClient(tracer, e.method)(tagged)
	}
}
