package retry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l-vitaly/go-hashgraph/retry"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Timeout:     time.Second,
		MinBackoff:  time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}
}

func TestEndpointRetriesUntilSuccess(t *testing.T) {
	var calls int32
	next := func(context.Context, interface{}) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errFlaky
		}
		return "ok", nil
	}

	e := retry.Endpoint(fastPolicy(5), func(error) bool { return true })(next)
	resp, err := e(context.Background(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEndpointStopsAtMaxAttempts(t *testing.T) {
	var calls int32
	next := func(context.Context, interface{}) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errFlaky
	}

	e := retry.Endpoint(fastPolicy(3), func(error) bool { return true })(next)
	_, err := e(context.Background(), struct{}{})
	require.Error(t, err)
	assert.Equal(t, errFlaky, retry.Unwrap(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEndpointSkipsNonRetryable(t *testing.T) {
	var calls int32
	next := func(context.Context, interface{}) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errFlaky
	}

	e := retry.Endpoint(fastPolicy(5), func(err error) bool { return err != errFlaky })(next)
	_, err := e(context.Background(), struct{}{})
	assert.Equal(t, errFlaky, retry.Unwrap(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCancelStopsBackoff(t *testing.T) {
	next := func(context.Context, interface{}) (interface{}, error) {
		return nil, errFlaky
	}
	p := retry.Policy{MaxAttempts: 5, Timeout: time.Minute, MinBackoff: 5 * time.Second, MaxBackoff: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	begin := time.Now()
	_, err := retry.Endpoint(p, func(error) bool { return true })(next)(ctx, struct{}{})
	assert.Less(t, time.Since(begin), time.Second)
	assert.True(t, errors.Is(retry.Unwrap(err), context.Canceled), "err = %v", err)
}

func TestTimeoutStopsBackoff(t *testing.T) {
	next := func(context.Context, interface{}) (interface{}, error) {
		return nil, errFlaky
	}
	p := retry.Policy{MaxAttempts: 5, Timeout: 50 * time.Millisecond, MinBackoff: 5 * time.Second, MaxBackoff: 5 * time.Second}

	begin := time.Now()
	_, err := retry.Endpoint(p, func(error) bool { return true })(next)(context.Background(), struct{}{})
	assert.Less(t, time.Since(begin), time.Second)
	assert.True(t, errors.Is(retry.Unwrap(err), context.DeadlineExceeded), "err = %v", err)
}

func TestBackoff(t *testing.T) {
	p := retry.Policy{MinBackoff: 250 * time.Millisecond, MaxBackoff: time.Second}
	for attempt, want := range map[int]time.Duration{
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		4: time.Second,
		9: time.Second,
	} {
		assert.Equal(t, want, p.Backoff(attempt), "attempt %d", attempt)
	}
}

func TestUnwrapPassesThrough(t *testing.T) {
	assert.Equal(t, errFlaky, retry.Unwrap(errFlaky))
}
