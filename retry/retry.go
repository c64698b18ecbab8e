package retry

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	"github.com/go-kit/kit/sd/lb"
)

// Policy bounds how a node call is retried.
type Policy struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	// Timeout bounds all attempts together.
	Timeout    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// RetryBusy retries calls the node rejected as busy.
	RetryBusy bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Timeout:     2 * time.Minute,
		MinBackoff:  250 * time.Millisecond,
		MaxBackoff:  8 * time.Second,
		RetryBusy:   true,
	}
}

// Backoff is the pause after the given failed attempt, doubling from
// MinBackoff up to MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.MinBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Callback keeps trying while attempts remain and retryable accepts the
// error. The backoff pause ends early when ctx is done, and ctx's error
// becomes the final error.
func Callback(ctx context.Context, p Policy, retryable func(error) bool) lb.Callback {
	return func(n int, err error) (bool, error) {
		if n >= p.MaxAttempts || !retryable(err) {
			return false, nil
		}
		t := time.NewTimer(p.Backoff(n))
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.C:
			return true, nil
		}
	}
}

// Endpoint retries next under p. Timeout bounds the attempts and the
// pauses between them.
func Endpoint(p Policy, retryable func(error) bool) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		b := lb.NewRoundRobin(sd.FixedEndpointer{next})
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, p.Timeout)
			defer cancel()
			return lb.RetryWithCallback(p.Timeout, b, Callback(ctx, p, retryable))(ctx, request)
		}
	}
}

// Unwrap returns the last error of an exhausted retry, or err unchanged.
func Unwrap(err error) error {
	var re lb.RetryError
	if errors.As(err, &re) && re.Final != nil {
		return re.Final
	}
	return err
}
