package opentracing

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// ContextToTextMap injects the span of ctx into carrier, for transports
// without headers that carry the trace inside the message.
func ContextToTextMap(tracer opentracing.Tracer, logger log.Logger) func(context.Context, opentracing.TextMapCarrier) context.Context {
	return func(ctx context.Context, carrier opentracing.TextMapCarrier) context.Context {
		if span := opentracing.SpanFromContext(ctx); span != nil {
			if err := tracer.Inject(span.Context(), opentracing.TextMap, carrier); err != nil {
				_ = logger.Log("err", err)
			}
		}
		return ctx
	}
}

func TextMapToContext(tracer opentracing.Tracer, operationName string, logger log.Logger) func(context.Context, opentracing.TextMapCarrier) context.Context {
	return func(ctx context.Context, carrier opentracing.TextMapCarrier) context.Context {
		wireContext, err := tracer.Extract(opentracing.TextMap, carrier)
		if err != nil && err != opentracing.ErrSpanContextNotFound {
			_ = logger.Log("err", err)
		}
		span := tracer.StartSpan(operationName, ext.RPCServerOption(wireContext))
		return opentracing.ContextWithSpan(ctx, span)
	}
}
