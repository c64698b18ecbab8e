package grpc

import (
	"sync"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	kitot "github.com/go-kit/kit/tracing/opentracing"
	grpctransport "github.com/go-kit/kit/transport/grpc"
	stdopentracing "github.com/opentracing/opentracing-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
)

// Client creates endpoints for the methods of one node connection.
type Client struct {
	conn   *grpc.ClientConn
	before []grpctransport.ClientRequestFunc
}

func NewClient(conn *grpc.ClientConn, before ...grpctransport.ClientRequestFunc) *Client {
	return &Client{conn: conn, before: before}
}

// CreateEndpoint implements transportlayer.EndpointFactory.
func (c *Client) CreateEndpoint(m proto.Method) (endpoint.Endpoint, error) {
	return grpctransport.NewClient(
		c.conn,
		m.QualifiedService(),
		m.Name,
		encodeQuery,
		decodeResponse,
		proto.Response{},
		grpctransport.ClientBefore(c.before...),
	).Endpoint(), nil
}

type Option func(*Transport)

// WithDialOptions appends options to every dial.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(t *Transport) {
		t.dialOptions = append(t.dialOptions, opts...)
	}
}

// WithTracer propagates spans to the node in request metadata.
func WithTracer(tracer stdopentracing.Tracer, logger log.Logger) Option {
	return func(t *Transport) {
		t.before = append(t.before, kitot.ContextToGRPC(tracer, logger))
	}
}

// Transport dials nodes over gRPC and owns the connections it opened.
type Transport struct {
	dialOptions []grpc.DialOption
	before      []grpctransport.ClientRequestFunc

	mu    sync.Mutex
	conns []*grpc.ClientConn
}

func NewTransport(options ...Option) *Transport {
	t := &Transport{}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *Transport) Dial(address string) (transportlayer.EndpointFactory, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, t.dialOptions...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()

	return NewClient(conn, t.before...), nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var first error
	for _, conn := range t.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	t.conns = nil
	return first
}
