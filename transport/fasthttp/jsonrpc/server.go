package jsonrpc

import (
	"context"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pquerna/ffjson/ffjson"
	routing "github.com/qiangxue/fasthttp-routing"
	"github.com/valyala/fasthttp"

	fasthttptransport "github.com/l-vitaly/go-hashgraph/transport/fasthttp"
)

type requestIDKeyType struct{}

// RequestIDKey holds the *RequestID of the call being served.
var RequestIDKey requestIDKeyType

// Server wraps an endpoint codec map and serves it over HTTP.
type Server struct {
	ecm          EndpointCodecMap
	before       []fasthttptransport.ServerRequestFunc
	after        []fasthttptransport.ServerResponseFunc
	errorEncoder fasthttptransport.ErrorEncoder
	logger       log.Logger
}

// NewServer constructs a new server.
func NewServer(
	ecm EndpointCodecMap,
	options ...ServerOption,
) *Server {
	s := &Server{
		ecm:          ecm,
		errorEncoder: DefaultErrorEncoder,
		logger:       log.NewNopLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// ServerOption sets an optional parameter for servers.
type ServerOption func(*Server)

// ServerBefore functions are executed on the HTTP request object before the
// request is decoded.
func ServerBefore(before ...fasthttptransport.ServerRequestFunc) ServerOption {
	return func(s *Server) { s.before = append(s.before, before...) }
}

// ServerAfter functions are executed on the HTTP response after the
// endpoint is invoked, but before anything is written to the client.
func ServerAfter(after ...fasthttptransport.ServerResponseFunc) ServerOption {
	return func(s *Server) { s.after = append(s.after, after...) }
}

// ServerErrorEncoder is used to encode errors to the response.
func ServerErrorEncoder(ee fasthttptransport.ErrorEncoder) ServerOption {
	return func(s *Server) { s.errorEncoder = ee }
}

// ServerErrorLogger is used to log non-terminal errors. By default, no errors
// are logged.
func ServerErrorLogger(logger log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// RouterHandle adapts s to a fasthttp-routing route.
func (s *Server) RouterHandle() routing.Handler {
	return func(ctx *routing.Context) error {
		s.ServeFastHTTP(ctx.RequestCtx)
		return nil
	}
}

// ServeFastHTTP is a fasthttp.RequestHandler.
func (s *Server) ServeFastHTTP(rctx *fasthttp.RequestCtx) {
	if !rctx.IsPost() {
		rctx.Response.Header.SetContentType("text/plain; charset=utf-8")
		rctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		rctx.SetBodyString("405 must POST\n")
		return
	}

	ctx := context.Background()

	for _, f := range s.before {
		ctx = f(ctx, rctx)
	}

	var req Request
	if err := ffjson.Unmarshal(rctx.Request.Body(), &req); err != nil {
		s.fail(ctx, parseError("JSON could not be decoded: "+err.Error()), rctx)
		return
	}

	ctx = context.WithValue(ctx, RequestIDKey, req.ID)

	// The method in the body has priority over the last path segment.
	if req.Method == "" {
		path := string(rctx.Path())
		req.Method = path[strings.LastIndex(path, "/")+1:]
	}
	if req.Method == "" {
		s.fail(ctx, invalidRequestError("method required"), rctx)
		return
	}

	ecm, ok := s.ecm[req.Method]
	if !ok {
		s.fail(ctx, methodNotFoundError("Method "+req.Method+" was not found."), rctx)
		return
	}

	reqParams, err := ecm.Decode(ctx, req.Params)
	if err != nil {
		s.fail(ctx, err, rctx)
		return
	}

	response, err := ecm.Endpoint(ctx, reqParams)
	if err != nil {
		s.fail(ctx, err, rctx)
		return
	}

	for _, f := range s.after {
		ctx = f(ctx, &rctx.Response)
	}

	result, err := ecm.Encode(ctx, response)
	if err != nil {
		s.fail(ctx, err, rctx)
		return
	}

	b, err := ffjson.Marshal(&Response{
		JSONRPC: Version,
		Result:  result,
		ID:      req.ID,
	})
	if err != nil {
		s.fail(ctx, err, rctx)
		return
	}
	rctx.Response.Header.SetContentType(ContentType)
	rctx.SetBody(b)
}

func (s *Server) fail(ctx context.Context, err error, rctx *fasthttp.RequestCtx) {
	_ = s.logger.Log("err", err)
	s.errorEncoder(ctx, err, &rctx.Response)
}

// DefaultErrorEncoder writes the error as a JSON RPC error response with
// HTTP status 200. The code is InternalError unless err is an ErrorCoder.
func DefaultErrorEncoder(ctx context.Context, err error, r *fasthttp.Response) {
	r.Header.SetContentType(ContentType)
	if headerer, ok := err.(fasthttptransport.Headerer); ok {
		for k, v := range headerer.Headers() {
			r.Header.Set(k, v)
		}
	}

	e := Error{
		Code:    InternalError,
		Message: err.Error(),
	}
	if rpcErr, ok := err.(Error); ok {
		e = rpcErr
	} else if sc, ok := err.(ErrorCoder); ok {
		e.Code = sc.ErrorCode()
	}

	requestID, _ := ctx.Value(RequestIDKey).(*RequestID)

	b, _ := ffjson.Marshal(&Response{
		JSONRPC: Version,
		Error:   &e,
		ID:      requestID,
	})
	r.SetStatusCode(fasthttp.StatusOK)
	r.SetBody(b)
}
