package transportlayer

import (
	"context"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// Server answers query envelopes on behalf of a node.
type Server interface {
	Serve(ctx context.Context, m proto.Method, q *proto.Query) (*proto.Response, error)
}
