package opentracing

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/valyala/fasthttp"
)

// ContextToFastHTTP injects the span of ctx into the outgoing request headers.
func ContextToFastHTTP(tracer opentracing.Tracer, logger log.Logger) func(context.Context, *fasthttp.Request) context.Context {
	return func(ctx context.Context, req *fasthttp.Request) context.Context {
		if span := opentracing.SpanFromContext(ctx); span != nil {
			ext.HTTPMethod.Set(span, string(req.Header.Method()))
			ext.HTTPUrl.Set(span, req.URI().String())
			if err := tracer.Inject(span.Context(), opentracing.HTTPHeaders, requestHeaderCarrier{&req.Header}); err != nil {
				_ = logger.Log("err", err)
			}
		}
		return ctx
	}
}

// FastHTTPToContext starts a server span joined to the trace found in the
// request headers, or a root span when there is none.
func FastHTTPToContext(tracer opentracing.Tracer, operationName string, logger log.Logger) func(context.Context, *fasthttp.RequestCtx) context.Context {
	return func(ctx context.Context, rctx *fasthttp.RequestCtx) context.Context {
		wireContext, err := tracer.Extract(opentracing.HTTPHeaders, requestHeaderCarrier{&rctx.Request.Header})
		if err != nil && err != opentracing.ErrSpanContextNotFound {
			_ = logger.Log("err", err)
		}
		span := tracer.StartSpan(operationName, ext.RPCServerOption(wireContext))
		ext.HTTPMethod.Set(span, string(rctx.Method()))
		return opentracing.ContextWithSpan(ctx, span)
	}
}

type requestHeaderCarrier struct {
	h *fasthttp.RequestHeader
}

func (c requestHeaderCarrier) Set(key, val string) {
	c.h.Set(key, val)
}

func (c requestHeaderCarrier) ForeachKey(handler func(key, val string) error) error {
	var err error
	c.h.VisitAll(func(k, v []byte) {
		if err == nil {
			err = handler(string(k), string(v))
		}
	})
	return err
}
