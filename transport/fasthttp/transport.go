package fasthttp

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// FastHTTPClient is the part of *fasthttp.Client the transports need.
type FastHTTPClient interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// ClientRequestFunc runs on the outgoing request after it is encoded.
type ClientRequestFunc func(context.Context, *fasthttp.Request) context.Context

// ClientResponseFunc runs on the response before it is decoded.
type ClientResponseFunc func(context.Context, *fasthttp.Response) context.Context

// ServerRequestFunc runs before the request is decoded.
type ServerRequestFunc func(context.Context, *fasthttp.RequestCtx) context.Context

// ServerResponseFunc runs after the endpoint, before the response is encoded.
type ServerResponseFunc func(context.Context, *fasthttp.Response) context.Context

// DecodeRequestFunc reads the endpoint request from the path, query
// arguments or body of rctx.
type DecodeRequestFunc func(ctx context.Context, rctx *fasthttp.RequestCtx) (interface{}, error)

type EncodeResponseFunc func(context.Context, *fasthttp.Response, interface{}) error

// ErrorEncoder writes err to the response.
type ErrorEncoder func(ctx context.Context, err error, r *fasthttp.Response)

// SetContentType returns a ServerResponseFunc that sets the Content-Type header.
func SetContentType(contentType string) ServerResponseFunc {
	return SetResponseHeader("Content-Type", contentType)
}

func SetResponseHeader(key, val string) ServerResponseFunc {
	return func(ctx context.Context, r *fasthttp.Response) context.Context {
		r.Header.Set(key, val)
		return ctx
	}
}

func SetRequestHeader(key, val string) ClientRequestFunc {
	return func(ctx context.Context, r *fasthttp.Request) context.Context {
		r.Header.Set(key, val)
		return ctx
	}
}

// Do sends req with c, bounded by the deadline of ctx when it has one.
func Do(ctx context.Context, c FastHTTPClient, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		err := c.DoDeadline(req, resp, deadline)
		if err == fasthttp.ErrTimeout {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !time.Now().Before(deadline) {
				return context.DeadlineExceeded
			}
		}
		return err
	}
	return c.Do(req, resp)
}

// StatusCoder is checked by EncodeJSONError and EncodeJSONResponse.
type StatusCoder interface {
	StatusCode() int
}

// Headerer is checked by EncodeJSONError and EncodeJSONResponse.
type Headerer interface {
	Headers() map[string]string
}

func applyHeaders(v interface{}, h *fasthttp.ResponseHeader) {
	if headerer, ok := v.(Headerer); ok {
		for k, val := range headerer.Headers() {
			h.Set(k, val)
		}
	}
}
