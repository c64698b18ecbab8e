package query

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log/level"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// State is the lifecycle position of a query.
type State int32

const (
	StateBuilding State = iota
	StateValidated
	StateSubmitted
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateValidated:
		return "validated"
	case StateSubmitted:
		return "submitted"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var errAlreadyExecuted = errors.New("query already executed")

// Query is the base shared by every query kind. It owns node selection,
// payment, cost estimation, submission and response dispatch; the
// operation supplies the body, validation and extraction.
//
// A Query is configured by one goroutine and executed once. Setters must
// not be called once execution has started.
type Query[T any] struct {
	op         Operation[T]
	nodeID     *proto.AccountID
	payment    *uint64
	maxPayment *uint64
	state      atomic.Int32
}

func New[T any](op Operation[T]) *Query[T] {
	return &Query[T]{op: op}
}

// SetNodeAccountID pins the query to one node instead of letting the
// client select it.
func (q *Query[T]) SetNodeAccountID(id proto.AccountID) *Query[T] {
	q.nodeID = &id
	return q
}

// SetQueryPayment sets an explicit payment and skips the cost probe.
func (q *Query[T]) SetQueryPayment(tinybars uint64) *Query[T] {
	q.payment = &tinybars
	return q
}

// SetMaxQueryPayment bounds the payment derived from the cost probe.
// Without it the client default applies.
func (q *Query[T]) SetMaxQueryPayment(tinybars uint64) *Query[T] {
	q.maxPayment = &tinybars
	return q
}

func (q *Query[T]) State() State {
	return State(q.state.Load())
}

// Execute validates, pays for and submits the query, then extracts the
// typed result. It panics with *ResponseMismatchError when the node answers
// with another operation's response.
func (q *Query[T]) Execute(ctx context.Context, n Network) (res T, err error) {
	begin := time.Now()
	defer func() {
		_ = level.Debug(n.Logger()).Log(
			"query", q.op.Kind(),
			"method", q.op.Method(),
			"state", q.State(),
			"took", time.Since(begin),
			"err", errString(err),
		)
	}()

	if !q.state.CompareAndSwap(int32(StateBuilding), int32(StateValidated)) {
		return res, q.validationError(errAlreadyExecuted)
	}
	res, err = q.execute(ctx, n)
	if err != nil {
		q.state.Store(int32(StateFailed))
		return res, err
	}
	q.state.Store(int32(StateSucceeded))
	return res, nil
}

func (q *Query[T]) execute(ctx context.Context, n Network) (res T, err error) {
	if err = q.validate(ctx); err != nil {
		return res, err
	}
	node, err := n.SelectNode(q.nodeID)
	if err != nil {
		return res, q.validationError(err)
	}

	hdr := q.op.Header()
	hdr.ResponseType = proto.AnswerOnly
	hdr.Payment = nil
	if q.paymentRequired() {
		amount, err := q.paymentAmount(ctx, n, node)
		if err != nil {
			return res, err
		}
		pay, err := n.Payment(node, amount)
		if err != nil {
			return res, q.validationError(err)
		}
		hdr.Payment = pay
	}

	q.state.Store(int32(StateSubmitted))
	resp, err := q.submit(ctx, n, node)
	if err != nil {
		return res, err
	}
	res, ok := q.op.Extract(resp)
	if !ok {
		panic(&ResponseMismatchError{Want: q.op.Kind(), Got: resp.Populated()})
	}
	return res, nil
}

// Cost asks the network what executing the query would cost, applying the
// operation's correction when it has one. It does not consume the query.
func (q *Query[T]) Cost(ctx context.Context, n Network) (uint64, error) {
	if q.State() != StateBuilding {
		return 0, q.validationError(errAlreadyExecuted)
	}
	if err := q.validate(ctx); err != nil {
		return 0, err
	}
	if !q.paymentRequired() {
		return 0, nil
	}
	node, err := n.SelectNode(q.nodeID)
	if err != nil {
		return 0, q.validationError(err)
	}
	return q.cost(ctx, n, node)
}

func (q *Query[T]) cost(ctx context.Context, n Network, node proto.AccountID) (uint64, error) {
	hdr := q.op.Header()
	saved := *hdr
	defer func() { *hdr = saved }()

	pay, err := n.Payment(node, 0)
	if err != nil {
		return 0, q.validationError(err)
	}
	hdr.Payment = pay
	hdr.ResponseType = proto.CostAnswer

	resp, err := q.submit(ctx, n, node)
	if err != nil {
		return 0, err
	}
	raw := resp.Header().Cost
	if c, ok := q.op.(CostCorrector); ok {
		return c.CorrectCost(raw), nil
	}
	return raw, nil
}

func (q *Query[T]) paymentAmount(ctx context.Context, n Network, node proto.AccountID) (uint64, error) {
	if q.payment != nil {
		return *q.payment, nil
	}
	limit := n.MaxQueryPayment()
	if q.maxPayment != nil {
		limit = *q.maxPayment
	}
	cost, err := q.cost(ctx, n, node)
	if err != nil {
		return 0, err
	}
	if cost > limit {
		return 0, &Error{
			Kind:       KindMaxPaymentExceeded,
			Query:      q.op.Kind(),
			Reason:     "cost exceeds max query payment",
			Cost:       cost,
			MaxPayment: limit,
		}
	}
	return cost, nil
}

func (q *Query[T]) validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return q.cancelledError(err)
	}
	if err := q.op.Validate(); err != nil {
		return q.validationError(err)
	}
	return nil
}

// submit performs one request/response exchange and classifies the outcome.
func (q *Query[T]) submit(ctx context.Context, n Network, node proto.AccountID) (*proto.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, q.cancelledError(err)
	}
	resp, err := n.Invoke(ctx, node, q.op.Method(), q.op.Build())
	if err != nil {
		if ctx.Err() != nil {
			return nil, q.cancelledError(err)
		}
		return nil, &Error{Kind: KindNetwork, Query: q.op.Kind(), Cause: err}
	}
	if resp == nil {
		return nil, &Error{Kind: KindNetwork, Query: q.op.Kind(), Cause: errEmptyResponse}
	}
	if got := resp.Case(); got != q.op.Kind() {
		if got == proto.KindNone {
			got = resp.Populated()
		}
		panic(&ResponseMismatchError{Want: q.op.Kind(), Got: got})
	}
	hdr := resp.Header()
	if hdr == nil {
		return nil, &Error{Kind: KindNetwork, Query: q.op.Kind(), Cause: errMissingHeader}
	}
	if hdr.Status != proto.StatusOK {
		return nil, &Error{Kind: KindStatus, Query: q.op.Kind(), Status: hdr.Status}
	}
	return resp, nil
}

func (q *Query[T]) paymentRequired() bool {
	if f, ok := q.op.(FreeQuery); ok {
		return f.IsPaymentRequired()
	}
	return true
}

func (q *Query[T]) validationError(err error) error {
	return &Error{Kind: KindValidation, Query: q.op.Kind(), Reason: err.Error(), Cause: err}
}

func (q *Query[T]) cancelledError(err error) error {
	return &Error{Kind: KindCancelled, Query: q.op.Kind(), Cause: err}
}

var (
	errEmptyResponse = errors.New("empty response")
	errMissingHeader = errors.New("response header missing")
)

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
