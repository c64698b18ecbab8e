package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/pquerna/ffjson/ffjson"
	"github.com/valyala/fasthttp"

	"github.com/l-vitaly/go-hashgraph/proto"
	kitot "github.com/l-vitaly/go-hashgraph/tracing/opentracing"
	fasthttptransport "github.com/l-vitaly/go-hashgraph/transport/fasthttp"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
)

// DefaultPath is where nodes serve JSON RPC.
const DefaultPath = "/rpc"

type Option func(*Transport)

// WithHTTPClient replaces the shared fasthttp client.
func WithHTTPClient(c fasthttptransport.FastHTTPClient) Option {
	return func(t *Transport) { t.client = c }
}

func WithPath(path string) Option {
	return func(t *Transport) { t.path = path }
}

// WithTracer propagates spans to the node in request headers.
func WithTracer(tracer stdopentracing.Tracer, logger log.Logger) Option {
	return func(t *Transport) {
		t.before = append(t.before, kitot.ContextToFastHTTP(tracer, logger))
	}
}

// Transport dials nodes that serve queries as JSON RPC over HTTP. Method
// names are proto.Method.RPCName.
type Transport struct {
	client fasthttptransport.FastHTTPClient
	path   string
	before []fasthttptransport.ClientRequestFunc
}

func NewTransport(options ...Option) *Transport {
	t := &Transport{
		client: &fasthttp.Client{},
		path:   DefaultPath,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *Transport) Dial(address string) (transportlayer.EndpointFactory, error) {
	tgt, err := url.Parse("http://" + address + t.path)
	if err != nil {
		return nil, err
	}
	return &nodeClient{uri: tgt.String(), t: t}, nil
}

// Close is a no-op; connections belong to the fasthttp client.
func (t *Transport) Close() error {
	return nil
}

type nodeClient struct {
	uri string
	t   *Transport
	seq atomic.Uint64
}

func (c *nodeClient) CreateEndpoint(m proto.Method) (endpoint.Endpoint, error) {
	return NewClient(c.uri, m.RPCName(), encodeQuery, decodeResponse,
		SetClient(c.t.client),
		ClientBefore(c.t.before...),
		ClientSequence(&c.seq),
	).Endpoint(), nil
}

func encodeQuery(_ context.Context, req interface{}) (json.RawMessage, error) {
	q, ok := req.(*proto.Query)
	if !ok {
		return nil, fmt.Errorf("jsonrpc: unexpected request type %T", req)
	}
	return ffjson.Marshal(q)
}

func decodeResponse(_ context.Context, result json.RawMessage) (interface{}, error) {
	r := &proto.Response{}
	if err := ffjson.Unmarshal(result, r); err != nil {
		return nil, err
	}
	return r, nil
}

// QueryCodecs serves methods through s, keyed by RPCName.
func QueryCodecs(s transportlayer.Server, methods ...proto.Method) EndpointCodecMap {
	ecm := make(EndpointCodecMap, len(methods))
	for _, m := range methods {
		m := m
		ecm[m.RPCName()] = EndpointCodec{
			Endpoint: func(ctx context.Context, req interface{}) (interface{}, error) {
				return s.Serve(ctx, m, req.(*proto.Query))
			},
			Decode: decodeQuery,
			Encode: encodeResponse,
		}
	}
	return ecm
}

func decodeQuery(_ context.Context, params json.RawMessage) (interface{}, error) {
	q := &proto.Query{}
	if err := ffjson.Unmarshal(params, q); err != nil {
		return nil, Error{Code: InvalidParams, Message: err.Error()}
	}
	return q, nil
}

func encodeResponse(_ context.Context, resp interface{}) (json.RawMessage, error) {
	return ffjson.Marshal(resp)
}
