package fasthttp

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/pquerna/ffjson/ffjson"
	routing "github.com/qiangxue/fasthttp-routing"
	"github.com/valyala/fasthttp"
)

// DecodeError wraps a request the decoder rejected. It is answered with
// status 400.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "bad request: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) StatusCode() int { return fasthttp.StatusBadRequest }

// ServerFinalizerFunc runs once the response is written.
type ServerFinalizerFunc func(ctx context.Context, code int, rctx *fasthttp.RequestCtx)

// Server answers read-only node resources, such as the status document,
// with JSON.
type Server struct {
	e            endpoint.Endpoint
	dec          DecodeRequestFunc
	enc          EncodeResponseFunc
	before       []ServerRequestFunc
	after        []ServerResponseFunc
	finalizer    []ServerFinalizerFunc
	errorEncoder ErrorEncoder
	logger       log.Logger
}

// NewServer serves e. A nil dec passes no request to e, a nil enc writes
// the response as JSON.
func NewServer(e endpoint.Endpoint, dec DecodeRequestFunc, enc EncodeResponseFunc, options ...ServerOption) *Server {
	if dec == nil {
		dec = NoRequest
	}
	if enc == nil {
		enc = EncodeJSONResponse
	}
	s := &Server{
		e:            e,
		dec:          dec,
		enc:          enc,
		errorEncoder: EncodeJSONError,
		logger:       log.NewNopLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

type ServerOption func(*Server)

func ServerBefore(before ...ServerRequestFunc) ServerOption {
	return func(s *Server) { s.before = append(s.before, before...) }
}

func ServerAfter(after ...ServerResponseFunc) ServerOption {
	return func(s *Server) { s.after = append(s.after, after...) }
}

func ServerFinalizer(f ...ServerFinalizerFunc) ServerOption {
	return func(s *Server) { s.finalizer = append(s.finalizer, f...) }
}

func ServerErrorEncoder(ee ErrorEncoder) ServerOption {
	return func(s *Server) { s.errorEncoder = ee }
}

// ServerErrorLogger logs errors that were encoded to the client.
func ServerErrorLogger(logger log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// RouterHandle adapts s to a fasthttp-routing route.
func (s *Server) RouterHandle() routing.Handler {
	return func(ctx *routing.Context) error {
		s.Handle(ctx.RequestCtx)
		return nil
	}
}

// Handle is a fasthttp.RequestHandler.
func (s *Server) Handle(rctx *fasthttp.RequestCtx) {
	ctx := context.Background()
	if len(s.finalizer) > 0 {
		defer func() {
			for _, f := range s.finalizer {
				f(ctx, rctx.Response.StatusCode(), rctx)
			}
		}()
	}

	for _, f := range s.before {
		ctx = f(ctx, rctx)
	}

	request, err := s.dec(ctx, rctx)
	if err != nil {
		var sc StatusCoder
		if !errors.As(err, &sc) {
			err = &DecodeError{Err: err}
		}
		s.fail(ctx, err, rctx)
		return
	}

	response, err := s.e(ctx, request)
	if err != nil {
		s.fail(ctx, err, rctx)
		return
	}

	for _, f := range s.after {
		ctx = f(ctx, &rctx.Response)
	}
	if err := s.enc(ctx, &rctx.Response, response); err != nil {
		s.fail(ctx, err, rctx)
	}
}

func (s *Server) fail(ctx context.Context, err error, rctx *fasthttp.RequestCtx) {
	_ = s.logger.Log("path", string(rctx.Path()), "err", err)
	s.errorEncoder(ctx, err, &rctx.Response)
}

// NoRequest is the decoder of endpoints that take no input.
func NoRequest(context.Context, *fasthttp.RequestCtx) (interface{}, error) {
	return nil, nil
}

const jsonContentType = "application/json; charset=utf-8"

// EncodeJSONResponse writes response as JSON with status 200, or the code of
// a StatusCoder response.
func EncodeJSONResponse(_ context.Context, r *fasthttp.Response, response interface{}) error {
	applyHeaders(response, &r.Header)
	code := statusCode(response, fasthttp.StatusOK)
	r.SetStatusCode(code)
	if code == fasthttp.StatusNoContent {
		return nil
	}
	b, err := ffjson.Marshal(response)
	if err != nil {
		return err
	}
	r.Header.SetContentType(jsonContentType)
	r.SetBody(b)
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// EncodeJSONError writes {"error": ...} with status 500, or the code of a
// StatusCoder error.
func EncodeJSONError(_ context.Context, err error, r *fasthttp.Response) {
	applyHeaders(err, &r.Header)
	r.SetStatusCode(statusCode(err, fasthttp.StatusInternalServerError))
	r.Header.SetContentType(jsonContentType)
	b, _ := ffjson.Marshal(&errorBody{Error: err.Error()})
	r.SetBody(b)
}

func statusCode(v interface{}, def int) int {
	if err, ok := v.(error); ok {
		var sc StatusCoder
		if errors.As(err, &sc) {
			return sc.StatusCode()
		}
		return def
	}
	if sc, ok := v.(StatusCoder); ok {
		return sc.StatusCode()
	}
	return def
}
