// Package querytest provides a scripted query.Network for tests.
package querytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// Reply is one scripted answer to Invoke.
type Reply struct {
	Response *proto.Response
	Err      error
}

// Call records one Invoke as the network saw it.
type Call struct {
	Node         proto.AccountID
	Method       proto.Method
	Kind         proto.Kind
	ResponseType proto.ResponseType
	Payment      *proto.Transaction
}

// Network answers Invoke calls from a script, in order.
type Network struct {
	Node       proto.AccountID
	MaxPayment uint64
	// PaymentErr, when set, is returned by Payment.
	PaymentErr error

	mu       sync.Mutex
	script   []Reply
	calls    []Call
	payments []uint64
}

func NewNetwork(replies ...Reply) *Network {
	return &Network{
		Node:       proto.AccountID{Account: 3},
		MaxPayment: 100000000,
		script:     replies,
	}
}

var ErrUnknownNode = errors.New("unknown node")

func (n *Network) SelectNode(preferred *proto.AccountID) (proto.AccountID, error) {
	if preferred == nil {
		return n.Node, nil
	}
	if *preferred != n.Node {
		return proto.AccountID{}, ErrUnknownNode
	}
	return *preferred, nil
}

func (n *Network) Payment(node proto.AccountID, amount uint64) (*proto.Transaction, error) {
	if n.PaymentErr != nil {
		return nil, n.PaymentErr
	}
	n.mu.Lock()
	n.payments = append(n.payments, amount)
	n.mu.Unlock()
	body, err := proto.MarshalBody(&proto.TransactionBody{
		NodeAccountID: &node,
		CryptoTransfer: &proto.CryptoTransferTransactionBody{
			Transfers: []*proto.AccountAmount{{AccountID: &node, Amount: int64(amount)}},
		},
	})
	if err != nil {
		return nil, err
	}
	return &proto.Transaction{BodyBytes: body}, nil
}

func (n *Network) MaxQueryPayment() uint64 {
	return n.MaxPayment
}

func (n *Network) Invoke(ctx context.Context, node proto.AccountID, method proto.Method, q *proto.Query) (*proto.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	call := Call{Node: node, Method: method, Kind: q.Kind}
	if hdr := q.Header(); hdr != nil {
		call.ResponseType = hdr.ResponseType
		call.Payment = hdr.Payment
	}
	n.calls = append(n.calls, call)

	if len(n.calls) > len(n.script) {
		return nil, fmt.Errorf("unexpected call %d to %s", len(n.calls), method)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := n.script[len(n.calls)-1]
	return r.Response, r.Err
}

func (n *Network) Logger() log.Logger {
	return log.NewNopLogger()
}

// Calls returns the invocations observed so far.
func (n *Network) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// Payments returns the amounts passed to Payment so far.
func (n *Network) Payments() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.payments...)
}

// Header builds a response of the given kind carrying only a header.
func Header(kind proto.Kind, hdr *proto.ResponseHeader) *proto.Response {
	switch kind {
	case proto.KindContractCallLocal:
		return proto.NewContractCallLocalResponse(&proto.ContractCallLocalResponse{Header: hdr})
	case proto.KindCryptoGetAccountBalance:
		return proto.NewCryptoGetAccountBalanceResponse(&proto.CryptoGetAccountBalanceResponse{Header: hdr})
	case proto.KindTransactionGetReceipt:
		return proto.NewTransactionGetReceiptResponse(&proto.TransactionGetReceiptResponse{Header: hdr})
	}
	return &proto.Response{Kind: kind}
}

// CostReply answers a cost probe with cost.
func CostReply(kind proto.Kind, cost uint64) Reply {
	return Reply{Response: Header(kind, &proto.ResponseHeader{
		Status:       proto.StatusOK,
		ResponseType: proto.CostAnswer,
		Cost:         cost,
	})}
}

// StatusReply answers with a header-only response carrying status.
func StatusReply(kind proto.Kind, status proto.Status) Reply {
	return Reply{Response: Header(kind, &proto.ResponseHeader{Status: status})}
}

// ErrorReply fails the call at the transport level.
func ErrorReply(err error) Reply {
	return Reply{Err: err}
}
