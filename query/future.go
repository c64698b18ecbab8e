package query

import (
	"context"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// Future is a single-assignment result of an asynchronous query.
type Future[T any] struct {
	kind proto.Kind
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any](kind proto.Kind) *Future[T] {
	return &Future[T]{kind: kind, done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the query finishes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Await is Result bounded by ctx. Giving up on the wait does not stop the
// query; cancel the context passed to Submit for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, &Error{Kind: KindCancelled, Query: f.kind, Cause: ctx.Err()}
	}
}

// notify hands the result of f to exactly one of the callbacks, on its own
// goroutine, and not before returned is closed.
func notify[V any](f *Future[V], returned <-chan struct{}, onSuccess func(V), onError func(error)) {
	go func() {
		<-returned
		val, err := f.Result()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(val)
		}
	}()
}

// Submit starts Execute on a new goroutine. A response of the wrong kind
// panics on that goroutine, which ends the process: unlike a caller of
// Execute, the caller of Submit has no frame to recover in, and the future
// is never resolved.
func (q *Query[T]) Submit(ctx context.Context, n Network) *Future[T] {
	f := newFuture[T](q.op.Kind())
	go func() {
		f.resolve(q.Execute(ctx, n))
	}()
	return f
}

// SubmitCost starts Cost on a new goroutine.
func (q *Query[T]) SubmitCost(ctx context.Context, n Network) *Future[uint64] {
	f := newFuture[uint64](q.op.Kind())
	go func() {
		f.resolve(q.Cost(ctx, n))
	}()
	return f
}

// ExecuteAsync is Execute with callback continuations. Exactly one of
// onSuccess and onError is called, once, on another goroutine, after
// ExecuteAsync has returned. The exception is a response of the wrong kind:
// as with Submit, the panic ends the process and no continuation runs.
func (q *Query[T]) ExecuteAsync(ctx context.Context, n Network, onSuccess func(T), onError func(error)) {
	returned := make(chan struct{})
	defer close(returned)
	notify(q.Submit(ctx, n), returned, onSuccess, onError)
}

// CostAsync is Cost with callback continuations, with the same delivery
// guarantees as ExecuteAsync.
func (q *Query[T]) CostAsync(ctx context.Context, n Network, onCost func(uint64), onError func(error)) {
	returned := make(chan struct{})
	defer close(returned)
	notify(q.SubmitCost(ctx, n), returned, onCost, onError)
}
