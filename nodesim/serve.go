package nodesim

import (
	"context"

	"github.com/nats-io/nats.go"
	routing "github.com/qiangxue/fasthttp-routing"
	"github.com/valyala/fasthttp"
	"google.golang.org/grpc"

	"github.com/l-vitaly/go-hashgraph/proto"
	fasthttptransport "github.com/l-vitaly/go-hashgraph/transport/fasthttp"
	"github.com/l-vitaly/go-hashgraph/transport/fasthttp/graphql"
	"github.com/l-vitaly/go-hashgraph/transport/fasthttp/jsonrpc"
	natstransport "github.com/l-vitaly/go-hashgraph/transport/nats"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
	grpcl "github.com/l-vitaly/go-hashgraph/transportlayer/grpc"
)

var methods = []proto.Method{
	proto.MethodContractCallLocal,
	proto.MethodCryptoGetBalance,
	proto.MethodGetReceipt,
}

func (n *Node) endpoints() []transportlayer.Endpoint {
	endpoints := make([]transportlayer.Endpoint, 0, len(methods))
	for _, m := range methods {
		m := m
		endpoints = append(endpoints, transportlayer.NewEndpoint(m.String(),
			func(ctx context.Context, req interface{}) (interface{}, error) {
				return n.Serve(ctx, m, req.(*proto.Query))
			},
			transportlayer.WithConverter(grpcl.QueryConverter()),
			transportlayer.WithLogger(n.logger),
		))
	}
	return endpoints
}

// GRPCServer returns a gRPC server with the ledger services registered.
// The caller starts and stops it.
func (n *Node) GRPCServer(options ...grpcl.ServerOption) (*grpc.Server, error) {
	srv, err := grpcl.NewServer(n.endpoints(), options...)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	grpcl.Register(gs, srv, methods...)
	return gs, nil
}

// Status is served on GET /status. With ?status=NAME only queries answered
// with that precheck status are counted.
type Status struct {
	Node   string `json:"node"`
	Served int    `json:"served"`
}

func decodeStatusFilter(_ context.Context, rctx *fasthttp.RequestCtx) (interface{}, error) {
	return string(rctx.QueryArgs().Peek("status")), nil
}

func (n *Node) status(_ context.Context, req interface{}) (interface{}, error) {
	filter, _ := req.(string)
	s := Status{Node: n.id.String()}
	for _, served := range n.Served() {
		if filter == "" || served.Status.String() == filter {
			s.Served++
		}
	}
	return s, nil
}

// HTTPHandler serves JSON RPC on jsonrpc.DefaultPath, the node status on
// /status and the Schema on /graphql.
func (n *Node) HTTPHandler(options ...jsonrpc.ServerOption) (fasthttp.RequestHandler, error) {
	schema, err := n.Schema()
	if err != nil {
		return nil, err
	}

	router := routing.New()
	router.Post(jsonrpc.DefaultPath, jsonrpc.NewServer(jsonrpc.QueryCodecs(n, methods...), options...).RouterHandle())
	router.Get("/status", fasthttptransport.NewServer(n.status, decodeStatusFilter, nil,
		fasthttptransport.ServerErrorLogger(n.logger),
	).RouterHandle())

	gql := graphql.NewServer(graphql.MakeEndpoint(schema), graphql.ServerErrorLogger(n.logger))
	router.Get("/graphql", gql.RouterHandle())
	router.Post("/graphql", gql.RouterHandle())
	return router.HandleRequest, nil
}

// SubscribeNATS answers queries sent to the node's subjects under prefix.
func (n *Node) SubscribeNATS(conn natstransport.Subscriber, prefix string, options ...natstransport.ServerOption) ([]*nats.Subscription, error) {
	options = append([]natstransport.ServerOption{natstransport.ServerErrorLogger(n.logger)}, options...)
	return natstransport.Serve(conn, prefix, n.id.String(), n, options...)
}
