// Package transaction holds the transaction receipt query.
package transaction

import (
	"errors"
	"time"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/query"
	"github.com/l-vitaly/go-hashgraph/util"
)

// Receipt is the outcome of a transaction reached by consensus. Status is
// data: a failed transaction still has a receipt.
type Receipt struct {
	Status proto.Status
	// AccountID is set when the transaction created an account.
	AccountID *proto.AccountID
	// ContractID is set when the transaction created a contract.
	ContractID         *proto.ContractID
	ConsensusTimestamp time.Time
}

// ReceiptQuery fetches the receipt of a transaction. Nodes answer it
// without payment.
type ReceiptQuery struct {
	*query.Query[Receipt]
	op *receiptOp
}

func NewReceiptQuery() *ReceiptQuery {
	op := &receiptOp{body: &proto.TransactionGetReceiptQuery{Header: &proto.QueryHeader{}}}
	return &ReceiptQuery{Query: query.New[Receipt](op), op: op}
}

func (q *ReceiptQuery) SetTransactionID(id proto.TransactionID) *ReceiptQuery {
	q.op.body.TransactionID = &id
	return q
}

func (q *ReceiptQuery) SetNodeAccountID(id proto.AccountID) *ReceiptQuery {
	q.Query.SetNodeAccountID(id)
	return q
}

type receiptOp struct {
	body *proto.TransactionGetReceiptQuery
}

func (o *receiptOp) Kind() proto.Kind           { return proto.KindTransactionGetReceipt }
func (o *receiptOp) Method() proto.Method       { return proto.MethodGetReceipt }
func (o *receiptOp) Header() *proto.QueryHeader { return o.body.Header }
func (o *receiptOp) IsPaymentRequired() bool    { return false }

func (o *receiptOp) Build() *proto.Query {
	return proto.NewTransactionGetReceiptQuery(o.body)
}

func (o *receiptOp) Validate() error {
	if o.body.TransactionID == nil {
		return errors.New(".SetTransactionID() required")
	}
	return nil
}

func (o *receiptOp) Extract(r *proto.Response) (Receipt, bool) {
	if r.TransactionGetReceipt == nil {
		return Receipt{}, false
	}
	rec := r.TransactionGetReceipt.Receipt
	if rec == nil {
		return Receipt{Status: proto.StatusUnknown}, true
	}
	return Receipt{
		Status:             rec.Status,
		AccountID:          rec.AccountID,
		ContractID:         rec.ContractID,
		ConsensusTimestamp: util.TimestampToTime(rec.ConsensusTimestamp),
	}, true
}
