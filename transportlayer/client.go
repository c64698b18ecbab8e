package transportlayer

import (
	"context"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// Client submits query envelopes to the node it is bound to.
type Client interface {
	Call(ctx context.Context, m proto.Method, q *proto.Query) (*proto.Response, error)
}
