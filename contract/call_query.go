// Package contract holds the local smart contract call query and the ABI
// helpers used to build its parameters and read its result.
package contract

import (
	"errors"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/query"
)

// The network underestimates the cost of local calls, so the estimate is
// raised by 10%.
var costFactor = query.CostFactor{Num: 11, Den: 10}

// CallQuery runs a contract function against the state of a single node.
// The call is not submitted to consensus and cannot change state.
type CallQuery struct {
	*query.Query[FunctionResult]
	op *callOp
}

func NewCallQuery() *CallQuery {
	op := &callOp{body: &proto.ContractCallLocalQuery{Header: &proto.QueryHeader{}}}
	return &CallQuery{Query: query.New[FunctionResult](op), op: op}
}

func (q *CallQuery) SetContractID(id proto.ContractID) *CallQuery {
	q.op.body.ContractID = &id
	return q
}

// SetGas sets the gas the call may use.
func (q *CallQuery) SetGas(gas int64) *CallQuery {
	q.op.body.Gas = gas
	return q
}

// SetFunctionParameters sets the raw call data, selector included.
func (q *CallQuery) SetFunctionParameters(params []byte) *CallQuery {
	q.op.body.FunctionParameters = params
	q.op.paramsErr = nil
	return q
}

// SetFunction calls name without arguments.
func (q *CallQuery) SetFunction(name string) *CallQuery {
	return q.SetFunctionWithParams(name, NewFunctionParams())
}

// SetFunctionWithParams encodes a call of name with params. An encoding
// error is reported when the query is validated.
func (q *CallQuery) SetFunctionWithParams(name string, params *FunctionParams) *CallQuery {
	if params == nil {
		params = NewFunctionParams()
	}
	data, err := params.Encode(name)
	q.op.body.FunctionParameters = data
	q.op.paramsErr = err
	return q
}

// SetMaxResultSize bounds the size of the returned call result in bytes.
func (q *CallQuery) SetMaxResultSize(size int64) *CallQuery {
	q.op.body.MaxResultSize = size
	return q
}

func (q *CallQuery) SetNodeAccountID(id proto.AccountID) *CallQuery {
	q.Query.SetNodeAccountID(id)
	return q
}

func (q *CallQuery) SetQueryPayment(tinybars uint64) *CallQuery {
	q.Query.SetQueryPayment(tinybars)
	return q
}

func (q *CallQuery) SetMaxQueryPayment(tinybars uint64) *CallQuery {
	q.Query.SetMaxQueryPayment(tinybars)
	return q
}

type callOp struct {
	body      *proto.ContractCallLocalQuery
	paramsErr error
}

func (o *callOp) Kind() proto.Kind           { return proto.KindContractCallLocal }
func (o *callOp) Method() proto.Method       { return proto.MethodContractCallLocal }
func (o *callOp) Header() *proto.QueryHeader { return o.body.Header }

func (o *callOp) Build() *proto.Query {
	return proto.NewContractCallLocalQuery(o.body)
}

func (o *callOp) Validate() error {
	if o.body.ContractID == nil {
		return errors.New(".SetContractID() required")
	}
	if o.paramsErr != nil {
		return o.paramsErr
	}
	return nil
}

func (o *callOp) CorrectCost(raw uint64) uint64 {
	return costFactor.Apply(raw)
}

func (o *callOp) Extract(r *proto.Response) (FunctionResult, bool) {
	if r.ContractCallLocal == nil {
		return FunctionResult{}, false
	}
	return newFunctionResult(r.ContractCallLocal.FunctionResult), true
}
