package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/nats-io/nats.go"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/pquerna/ffjson/ffjson"

	"github.com/l-vitaly/go-hashgraph/proto"
	kitot "github.com/l-vitaly/go-hashgraph/tracing/opentracing"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
)

// DefaultSubjectPrefix roots every query subject.
const DefaultSubjectPrefix = "ledger"

// Subject is where node serves m: prefix.node.Service.name.
func Subject(prefix, node string, m proto.Method) string {
	return prefix + "." + node + "." + m.RPCName()
}

type Option func(*Transport)

func WithSubjectPrefix(prefix string) Option {
	return func(t *Transport) { t.prefix = prefix }
}

// WithTracer carries spans to the node in the envelope header.
func WithTracer(tracer stdopentracing.Tracer, logger log.Logger) Option {
	inject := kitot.ContextToTextMap(tracer, logger)
	return func(t *Transport) {
		t.before = append(t.before, func(ctx context.Context, h map[string]string) context.Context {
			return inject(ctx, h)
		})
	}
}

// Transport sends queries as NATS requests. The dialled address is the
// subject token of the node.
type Transport struct {
	conn   Requester
	prefix string
	before []RequestFunc
}

func NewTransport(conn Requester, options ...Option) *Transport {
	t := &Transport{conn: conn, prefix: DefaultSubjectPrefix}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *Transport) Dial(address string) (transportlayer.EndpointFactory, error) {
	if address == "" {
		return nil, fmt.Errorf("nats: empty node subject")
	}
	return &nodeClient{node: address, t: t}, nil
}

// Close is a no-op; the connection belongs to the caller.
func (t *Transport) Close() error {
	return nil
}

type nodeClient struct {
	node string
	t    *Transport
}

func (c *nodeClient) CreateEndpoint(m proto.Method) (endpoint.Endpoint, error) {
	return NewClient(
		c.t.conn,
		Subject(c.t.prefix, c.node, m),
		encodeQuery,
		decodeResponse,
		ClientBefore(c.t.before...),
	).Endpoint(), nil
}

// Subscriber is the part of *nats.Conn a node needs to serve queries.
type Subscriber interface {
	Publisher
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Handlers returns one handler per method subject of node, all served by s.
func Handlers(conn Publisher, prefix, node string, s transportlayer.Server, options ...ServerOption) map[string]nats.MsgHandler {
	handlers := make(map[string]nats.MsgHandler, len(proto.Methods))
	for _, m := range proto.Methods {
		m := m
		srv := NewServer(conn, func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.Serve(ctx, m, req.(*proto.Query))
		}, decodeQuery, encodeResponse, options...)
		handlers[Subject(prefix, node, m)] = srv.ServeMsg
	}
	return handlers
}

// Serve subscribes the handlers of node on conn.
func Serve(conn Subscriber, prefix, node string, s transportlayer.Server, options ...ServerOption) ([]*nats.Subscription, error) {
	var subs []*nats.Subscription
	for subj, h := range Handlers(conn, prefix, node, s, options...) {
		sub, err := conn.Subscribe(subj, h)
		if err != nil {
			for _, sub := range subs {
				_ = sub.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// TraceServer joins spans carried in the envelope header.
func TraceServer(tracer stdopentracing.Tracer, operationName string, logger log.Logger) ServerOption {
	extract := kitot.TextMapToContext(tracer, operationName, logger)
	return ServerBefore(func(ctx context.Context, h map[string]string) context.Context {
		return extract(ctx, h)
	})
}

func encodeQuery(_ context.Context, req interface{}) (json.RawMessage, error) {
	q, ok := req.(*proto.Query)
	if !ok {
		return nil, fmt.Errorf("nats: unexpected request type %T", req)
	}
	return ffjson.Marshal(q)
}

func decodeResponse(_ context.Context, body json.RawMessage) (interface{}, error) {
	r := &proto.Response{}
	if err := ffjson.Unmarshal(body, r); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeQuery(_ context.Context, body json.RawMessage) (interface{}, error) {
	q := &proto.Query{}
	if err := ffjson.Unmarshal(body, q); err != nil {
		return nil, err
	}
	return q, nil
}

func encodeResponse(_ context.Context, resp interface{}) (json.RawMessage, error) {
	return ffjson.Marshal(resp)
}
