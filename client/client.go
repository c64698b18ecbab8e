package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	stdopentracing "github.com/opentracing/opentracing-go"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/query"
	"github.com/l-vitaly/go-hashgraph/retry"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
	grpcl "github.com/l-vitaly/go-hashgraph/transportlayer/grpc"
)

const (
	// DefaultMaxQueryPayment is one hbar.
	DefaultMaxQueryPayment uint64 = 100000000
	// DefaultTransactionFee bounds the fee of a query payment.
	DefaultTransactionFee uint64 = 100000000
	DefaultValidDuration         = 120 * time.Second
)

var (
	ErrOperatorRequired = errors.New("operator required for paid queries")
	ErrNoNodes          = errors.New("network has no nodes")
	ErrUnknownNode      = errors.New("node is not part of the network")
)

// Dialer opens the transport to a node address.
type Dialer interface {
	Dial(address string) (transportlayer.EndpointFactory, error)
	Close() error
}

// Node is one network member.
type Node struct {
	AccountID proto.AccountID
	Address   string
}

// Client submits queries to a fixed set of nodes. It implements
// query.Network and is safe for concurrent use.
type Client struct {
	nodes []Node
	index map[proto.AccountID]Node
	next  atomic.Uint64

	operator        *Operator
	maxQueryPayment uint64
	transactionFee  uint64
	validDuration   time.Duration
	now             func() time.Time

	dialer    Dialer
	newDialer func(*Client) (Dialer, error)
	policy    retry.Policy
	logger    log.Logger
	duration  metrics.Histogram
	tracer    stdopentracing.Tracer

	mu     sync.Mutex
	layers map[proto.AccountID]transportlayer.Client
}

var _ query.Network = (*Client)(nil)

type Option func(*Client)

func WithOperator(o Operator) Option {
	return func(c *Client) { c.operator = &o }
}

// WithMaxQueryPayment sets the default bound on probed query costs.
func WithMaxQueryPayment(tinybars uint64) Option {
	return func(c *Client) { c.maxQueryPayment = tinybars }
}

func WithTransactionFee(tinybars uint64) Option {
	return func(c *Client) { c.transactionFee = tinybars }
}

// WithTransport replaces the default gRPC transport.
func WithTransport(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDuration records the latency of every node call.
func WithDuration(h metrics.Histogram) Option {
	return func(c *Client) { c.duration = h }
}

func WithTracer(t stdopentracing.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// withDialerFactory defers building the transport until every option has
// been applied.
func withDialerFactory(f func(*Client) (Dialer, error)) Option {
	return func(c *Client) { c.newDialer = f }
}

func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for network, which maps node addresses to node
// account ids.
func New(network map[string]proto.AccountID, options ...Option) (*Client, error) {
	if len(network) == 0 {
		return nil, ErrNoNodes
	}
	c := &Client{
		index:           make(map[proto.AccountID]Node, len(network)),
		maxQueryPayment: DefaultMaxQueryPayment,
		transactionFee:  DefaultTransactionFee,
		validDuration:   DefaultValidDuration,
		now:             time.Now,
		policy:          retry.DefaultPolicy(),
		logger:          log.NewNopLogger(),
		duration:        discard.NewHistogram(),
		tracer:          stdopentracing.NoopTracer{},
		layers:          make(map[proto.AccountID]transportlayer.Client),
	}
	for address, id := range network {
		if _, ok := c.index[id]; ok {
			return nil, fmt.Errorf("node %s listed twice", id)
		}
		n := Node{AccountID: id, Address: address}
		c.nodes = append(c.nodes, n)
		c.index[id] = n
	}
	sort.Slice(c.nodes, func(i, j int) bool {
		return c.nodes[i].AccountID.String() < c.nodes[j].AccountID.String()
	})

	for _, option := range options {
		option(c)
	}
	switch {
	case c.dialer != nil:
	case c.newDialer != nil:
		d, err := c.newDialer(c)
		if err != nil {
			return nil, err
		}
		c.dialer = d
	default:
		c.dialer = grpcl.NewTransport(grpcl.WithTracer(c.tracer, c.logger))
	}
	return c, nil
}

// Nodes returns the network in selection order.
func (c *Client) Nodes() []Node {
	return append([]Node(nil), c.nodes...)
}

// SelectNode implements query.Network. Without a preference nodes are
// taken in turn.
func (c *Client) SelectNode(preferred *proto.AccountID) (proto.AccountID, error) {
	if preferred != nil {
		if _, ok := c.index[*preferred]; !ok {
			return proto.AccountID{}, fmt.Errorf("%s: %w", preferred, ErrUnknownNode)
		}
		return *preferred, nil
	}
	i := c.next.Add(1) - 1
	return c.nodes[i%uint64(len(c.nodes))].AccountID, nil
}

func (c *Client) MaxQueryPayment() uint64 {
	return c.maxQueryPayment
}

func (c *Client) Logger() log.Logger {
	return c.logger
}

// Invoke implements query.Network.
func (c *Client) Invoke(ctx context.Context, node proto.AccountID, m proto.Method, q *proto.Query) (*proto.Response, error) {
	tl, err := c.layer(node)
	if err != nil {
		return nil, err
	}
	resp, err := tl.Call(ctx, m, q)
	if err != nil {
		return nil, retry.Unwrap(err)
	}
	return resp, nil
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.dialer.Close()
}

func (c *Client) layer(id proto.AccountID) (transportlayer.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tl, ok := c.layers[id]; ok {
		return tl, nil
	}
	node, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownNode)
	}
	ef, err := c.dialer.Dial(node.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s at %s: %w", id, node.Address, err)
	}
	tl := transportlayer.NewTransportLayer(ef, transportlayer.OptionFactoryFunc(func(proto.Method) []transportlayer.EndpointOption {
		return c.endpointOptions(node)
	}))
	c.layers[id] = tl
	return tl, nil
}
