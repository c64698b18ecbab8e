// Package account holds the account balance query.
package account

import (
	"errors"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/query"
)

// BalanceQuery returns the balance of an account.
type BalanceQuery struct {
	*query.Query[Hbar]
	op *balanceOp
}

func NewBalanceQuery() *BalanceQuery {
	op := &balanceOp{body: &proto.CryptoGetAccountBalanceQuery{Header: &proto.QueryHeader{}}}
	return &BalanceQuery{Query: query.New[Hbar](op), op: op}
}

func (q *BalanceQuery) SetAccountID(id proto.AccountID) *BalanceQuery {
	q.op.body.AccountID = &id
	return q
}

func (q *BalanceQuery) SetNodeAccountID(id proto.AccountID) *BalanceQuery {
	q.Query.SetNodeAccountID(id)
	return q
}

func (q *BalanceQuery) SetQueryPayment(tinybars uint64) *BalanceQuery {
	q.Query.SetQueryPayment(tinybars)
	return q
}

func (q *BalanceQuery) SetMaxQueryPayment(tinybars uint64) *BalanceQuery {
	q.Query.SetMaxQueryPayment(tinybars)
	return q
}

type balanceOp struct {
	body *proto.CryptoGetAccountBalanceQuery
}

func (o *balanceOp) Kind() proto.Kind           { return proto.KindCryptoGetAccountBalance }
func (o *balanceOp) Method() proto.Method       { return proto.MethodCryptoGetBalance }
func (o *balanceOp) Header() *proto.QueryHeader { return o.body.Header }

func (o *balanceOp) Build() *proto.Query {
	return proto.NewCryptoGetAccountBalanceQuery(o.body)
}

func (o *balanceOp) Validate() error {
	if o.body.AccountID == nil {
		return errors.New(".SetAccountID() required")
	}
	return nil
}

func (o *balanceOp) Extract(r *proto.Response) (Hbar, bool) {
	if r.CryptoGetAccountBalance == nil {
		return 0, false
	}
	return Hbar(r.CryptoGetAccountBalance.Balance), true
}
