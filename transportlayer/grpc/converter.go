package grpc

import (
	"context"
	"fmt"

	grpctransport "github.com/go-kit/kit/transport/grpc"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// EndpointConverter turns gRPC messages into endpoint requests and back.
type EndpointConverter struct {
	DecodeReq  grpctransport.DecodeRequestFunc
	EncodeResp grpctransport.EncodeResponseFunc
}

// QueryConverter passes queries and responses through unchanged; the codec
// already produced the wire model.
func QueryConverter() *EndpointConverter {
	return &EndpointConverter{
		DecodeReq:  decodeQuery,
		EncodeResp: encodeResponse,
	}
}

func decodeQuery(_ context.Context, req interface{}) (interface{}, error) {
	q, ok := req.(*proto.Query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedType, req)
	}
	return q, nil
}

func encodeResponse(_ context.Context, resp interface{}) (interface{}, error) {
	r, ok := resp.(*proto.Response)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedType, resp)
	}
	return r, nil
}

func encodeQuery(_ context.Context, req interface{}) (interface{}, error) {
	q, ok := req.(*proto.Query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedType, req)
	}
	return q, nil
}

func decodeResponse(_ context.Context, reply interface{}) (interface{}, error) {
	r, ok := reply.(*proto.Response)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedType, reply)
	}
	return r, nil
}
