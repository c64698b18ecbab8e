// Package graphql serves a GraphQL schema over fasthttp.
package graphql

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/graphql-go/graphql"
	"github.com/pquerna/ffjson/ffjson"
	routing "github.com/qiangxue/fasthttp-routing"
	"github.com/valyala/fasthttp"

	fasthttptransport "github.com/l-vitaly/go-hashgraph/transport/fasthttp"
)

// Request is a GraphQL request as posted by clients.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// DecodeRequestFunc extracts a Request from an HTTP request.
type DecodeRequestFunc func(context.Context, *fasthttp.RequestCtx) (Request, error)

// MakeEndpoint binds requests to schema. The endpoint returns graphql.Params.
func MakeEndpoint(schema graphql.Schema) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(Request)
		if !ok {
			return nil, errors.New("graphql: unexpected request type")
		}
		return graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			OperationName:  req.OperationName,
			VariableValues: req.Variables,
			Context:        ctx,
		}, nil
	}
}

// Server executes the graphql.Params produced by its endpoint. Query errors
// are part of the result and answered with status 200.
type Server struct {
	e      endpoint.Endpoint
	dec    DecodeRequestFunc
	before []fasthttptransport.ServerRequestFunc
	logger log.Logger
}

func NewServer(e endpoint.Endpoint, options ...ServerOption) *Server {
	s := &Server{
		e:      e,
		dec:    DecodeRequest,
		logger: log.NewNopLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

type ServerOption func(*Server)

// ServerBefore functions are executed on the request before it is decoded.
func ServerBefore(before ...fasthttptransport.ServerRequestFunc) ServerOption {
	return func(s *Server) { s.before = append(s.before, before...) }
}

func ServerDecoder(dec DecodeRequestFunc) ServerOption {
	return func(s *Server) { s.dec = dec }
}

func ServerErrorLogger(logger log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func (s *Server) RouterHandle() routing.Handler {
	return func(c *routing.Context) error {
		s.ServeFastHTTP(c.RequestCtx)
		return nil
	}
}

func (s *Server) ServeFastHTTP(rctx *fasthttp.RequestCtx) {
	ctx := context.Background()
	for _, f := range s.before {
		ctx = f(ctx, rctx)
	}

	req, err := s.dec(ctx, rctx)
	if err != nil {
		_ = s.logger.Log("err", err)
		errorEncoder(err, fasthttp.StatusBadRequest, &rctx.Response)
		return
	}

	p, err := s.e(ctx, req)
	if err != nil {
		_ = s.logger.Log("err", err)
		errorEncoder(err, fasthttp.StatusInternalServerError, &rctx.Response)
		return
	}
	params, ok := p.(graphql.Params)
	if !ok {
		errorEncoder(errors.New("graphql: endpoint did not return params"), fasthttp.StatusInternalServerError, &rctx.Response)
		return
	}

	res := graphql.Do(params)
	if res.HasErrors() {
		_ = s.logger.Log("query", req.Query, "errors", len(res.Errors))
	}
	b, err := ffjson.Marshal(res)
	if err != nil {
		errorEncoder(err, fasthttp.StatusInternalServerError, &rctx.Response)
		return
	}
	rctx.Response.Header.SetContentType("application/json; charset=utf-8")
	rctx.Response.SetBody(b)
}

// DecodeRequest reads a JSON body from POST requests and the query
// parameter from other methods.
func DecodeRequest(_ context.Context, rctx *fasthttp.RequestCtx) (Request, error) {
	var req Request
	if !rctx.IsPost() {
		req.Query = string(rctx.QueryArgs().Peek("query"))
		req.OperationName = string(rctx.QueryArgs().Peek("operationName"))
	} else if err := ffjson.Unmarshal(rctx.PostBody(), &req); err != nil {
		return req, err
	}
	if req.Query == "" {
		return req, errors.New("graphql: query required")
	}
	return req, nil
}

func errorEncoder(err error, code int, r *fasthttp.Response) {
	r.Header.SetContentType("application/json; charset=utf-8")
	r.SetStatusCode(code)
	b, _ := ffjson.Marshal(map[string]string{"error": err.Error()})
	r.SetBody(b)
}
