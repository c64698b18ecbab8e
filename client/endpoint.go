package client

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/retry"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
)

// busyError carries a BUSY response through the retry middleware. Once
// retries are exhausted the response is handed back as an answer.
type busyError struct {
	resp *proto.Response
}

func (e *busyError) Error() string {
	return "node busy"
}

// endpointOptions decorates every node endpoint. Each attempt is logged and
// timed; the trace span covers all attempts. A BUSY answer is turned into
// an error only between the attempt and the retry, so the logger, the
// histogram and the span all see the node's answer.
func (c *Client) endpointOptions(node Node) []transportlayer.EndpointOption {
	options := []transportlayer.EndpointOption{
		transportlayer.WithLogger(log.With(c.logger, "node", node.AccountID.String(), "address", node.Address)),
		transportlayer.WithDuration(c.duration),
	}
	if c.policy.RetryBusy {
		options = append(options, transportlayer.WithMiddleware(busyMiddleware))
	}
	if c.policy.MaxAttempts > 1 {
		options = append(options, transportlayer.WithMiddleware(retry.Endpoint(c.policy, retryable)))
	}
	if c.policy.RetryBusy {
		options = append(options, transportlayer.WithMiddleware(answerBusy))
	}
	return append(options, transportlayer.WithTrace(c.tracer))
}

func busyMiddleware(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		resp, err := next(ctx, request)
		if err != nil {
			return nil, err
		}
		if r, ok := resp.(*proto.Response); ok {
			if h := r.Header(); h != nil && h.Status == proto.StatusBusy {
				return nil, &busyError{resp: r}
			}
		}
		return resp, nil
	}
}

// answerBusy hands back the last BUSY response once retries are exhausted.
func answerBusy(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		resp, err := next(ctx, request)
		if err != nil {
			var busy *busyError
			if errors.As(retry.Unwrap(err), &busy) {
				return busy.resp, nil
			}
			return nil, err
		}
		return resp, nil
	}
}

// retryable reports whether a failed attempt may be repeated. Caller
// cancellation is final.
func retryable(err error) bool {
	var busy *busyError
	if errors.As(err, &busy) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return false
	}
	return true
}
