package query

import (
	"context"
	"math"
	"math/bits"

	"github.com/go-kit/kit/log"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// Operation is implemented once per query kind and plugged into Query.
type Operation[T any] interface {
	// Kind is the envelope variant the operation sends and expects back.
	Kind() proto.Kind
	Method() proto.Method
	// Header returns the mutable header owned by the operation body.
	Header() *proto.QueryHeader
	Build() *proto.Query
	// Validate returns the first unmet precondition, or nil.
	Validate() error
	// Extract decodes the operation's own response variant. It reports
	// false when that variant is absent.
	Extract(resp *proto.Response) (T, bool)
}

// CostCorrector is implemented by operations whose network cost estimate
// is known to be too low.
type CostCorrector interface {
	CorrectCost(raw uint64) uint64
}

// FreeQuery is implemented by operations the network answers without payment.
type FreeQuery interface {
	IsPaymentRequired() bool
}

// CostFactor is an exact rational multiplier Num/Den, rounded down.
type CostFactor struct {
	Num uint64
	Den uint64
}

// Apply returns floor(raw*Num/Den), saturating at math.MaxUint64.
func (f CostFactor) Apply(raw uint64) uint64 {
	hi, lo := bits.Mul64(raw, f.Num)
	if hi >= f.Den {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, f.Den)
	return q
}

// Network is the network client a query is submitted through. It must be
// safe for concurrent use by independent queries.
type Network interface {
	// SelectNode returns preferred when it is part of the network, or the
	// next node chosen by the client's selection policy when preferred is nil.
	SelectNode(preferred *proto.AccountID) (proto.AccountID, error)
	// Payment returns a signed transfer of amount to node.
	Payment(node proto.AccountID, amount uint64) (*proto.Transaction, error)
	MaxQueryPayment() uint64
	// Invoke submits q to node. Retries against transport failures are the
	// client's concern; a returned error means the client gave up.
	Invoke(ctx context.Context, node proto.AccountID, method proto.Method, q *proto.Query) (*proto.Response, error)
	Logger() log.Logger
}
