package transportlayer

import (
	"context"
	"fmt"
	"sync"

	gokit "github.com/go-kit/kit/endpoint"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// EndpointFactory opens the raw transport endpoint for one method of a node.
type EndpointFactory interface {
	CreateEndpoint(m proto.Method) (gokit.Endpoint, error)
}

// OptionFactory supplies the decorations for one method's endpoint.
type OptionFactory interface {
	CreateOptions(m proto.Method) []EndpointOption
}

type OptionFactoryFunc func(m proto.Method) []EndpointOption

func (f OptionFactoryFunc) CreateOptions(m proto.Method) []EndpointOption {
	return f(m)
}

// TransportLayer is the endpoint table of a single node. Endpoints are
// created on first use and reused afterwards.
type TransportLayer struct {
	of OptionFactory
	ef EndpointFactory

	mu        sync.Mutex
	endpoints map[proto.Method]Endpoint
}

func NewTransportLayer(ef EndpointFactory, of OptionFactory) *TransportLayer {
	return &TransportLayer{
		of:        of,
		ef:        ef,
		endpoints: make(map[proto.Method]Endpoint),
	}
}

// RegisterMethods creates the endpoints of methods up front.
func (t *TransportLayer) RegisterMethods(methods ...proto.Method) error {
	for _, m := range methods {
		if _, err := t.Endpoint(m); err != nil {
			return err
		}
	}
	return nil
}

func (t *TransportLayer) Endpoint(m proto.Method) (Endpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.endpoints[m]; ok {
		return e, nil
	}
	fn, err := t.ef.CreateEndpoint(m)
	if err != nil {
		return nil, fmt.Errorf("create endpoint %s: %w", m, err)
	}
	var options []EndpointOption
	if t.of != nil {
		options = t.of.CreateOptions(m)
	}
	e := NewEndpoint(m.String(), fn, options...)
	t.endpoints[m] = e
	return e, nil
}

func (t *TransportLayer) GetEndpoints() []Endpoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	endpoints := make([]Endpoint, 0, len(t.endpoints))
	for _, e := range t.endpoints {
		endpoints = append(endpoints, e)
	}
	return endpoints
}

// Call implements Client.
func (t *TransportLayer) Call(ctx context.Context, m proto.Method, q *proto.Query) (*proto.Response, error) {
	e, err := t.Endpoint(m)
	if err != nil {
		return nil, err
	}
	resp, err := e.Fn()(ctx, q)
	if err != nil {
		return nil, err
	}
	r, ok := resp.(*proto.Response)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected response type %T", m, resp)
	}
	return r, nil
}

var _ Client = (*TransportLayer)(nil)
