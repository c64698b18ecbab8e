package grpc

import (
	"context"
	"fmt"

	grpctransport "github.com/go-kit/kit/transport/grpc"
	"google.golang.org/grpc"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
)

type ServerOption func(*serverGRPC)

type serverGRPC struct {
	options map[string][]grpctransport.ServerOption
	methods map[string]*grpctransport.Server
}

// ServerGRPCOption applies o to the endpoint named method, or to every
// endpoint when method is "*".
func ServerGRPCOption(method string, o ...grpctransport.ServerOption) ServerOption {
	return func(s *serverGRPC) {
		s.options[method] = append(s.options[method], o...)
	}
}

// NewServer serves endpoints named after their proto.Method. Each endpoint
// must carry an *EndpointConverter.
func NewServer(endpoints []transportlayer.Endpoint, options ...ServerOption) (transportlayer.Server, error) {
	s := &serverGRPC{
		options: make(map[string][]grpctransport.ServerOption),
		methods: make(map[string]*grpctransport.Server),
	}
	for _, option := range options {
		option(s)
	}

	for _, m := range endpoints {
		var converter *EndpointConverter
		for _, c := range m.Converters() {
			if c, ok := c.(*EndpointConverter); ok {
				converter = c
				break
			}
		}
		if converter == nil {
			return nil, fmt.Errorf("%s: %w", m.Name(), ErrConverterNotFound)
		}

		serverOptions := append([]grpctransport.ServerOption(nil), s.options[m.Name()]...)
		serverOptions = append(serverOptions, s.options["*"]...)

		s.methods[m.Name()] = grpctransport.NewServer(
			m.Fn(),
			converter.DecodeReq,
			converter.EncodeResp,
			serverOptions...,
		)
	}
	return s, nil
}

func (s *serverGRPC) Serve(ctx context.Context, m proto.Method, q *proto.Query) (*proto.Response, error) {
	srv, ok := s.methods[m.String()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", m, ErrEndpointNotFound)
	}
	_, resp, err := srv.ServeGRPC(ctx, q)
	if err != nil {
		return nil, err
	}
	r, ok := resp.(*proto.Response)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedType, resp)
	}
	return r, nil
}

// Register exposes s on gs under the services that own methods.
func Register(gs *grpc.Server, s transportlayer.Server, methods ...proto.Method) {
	for _, sd := range ServiceDescs(methods...) {
		gs.RegisterService(sd, s)
	}
}

// ServiceDescs groups methods by service.
func ServiceDescs(methods ...proto.Method) []*grpc.ServiceDesc {
	var (
		descs []*grpc.ServiceDesc
		index = make(map[string]*grpc.ServiceDesc)
	)
	for _, m := range methods {
		sd, ok := index[m.QualifiedService()]
		if !ok {
			sd = &grpc.ServiceDesc{
				ServiceName: m.QualifiedService(),
				HandlerType: (*transportlayer.Server)(nil),
			}
			index[m.QualifiedService()] = sd
			descs = append(descs, sd)
		}
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    methodHandler(m),
		})
	}
	return descs
}

func methodHandler(m proto.Method) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		q := new(proto.Query)
		if err := dec(q); err != nil {
			return nil, err
		}
		s := srv.(transportlayer.Server)
		if interceptor == nil {
			return s.Serve(ctx, m, q)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: m.String()}
		return interceptor(ctx, q, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.Serve(ctx, m, req.(*proto.Query))
		})
	}
}
