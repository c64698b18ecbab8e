// Package nodesim is an in-process ledger node. It answers the query
// methods from state set up by the caller and checks query payments the way
// a real node prechecks them.
package nodesim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/crypto/ed25519"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// ContractFunc executes a local contract call. A non-empty revert message
// makes the node answer CONTRACT_REVERT_EXECUTED.
type ContractFunc func(params []byte, gas int64) (result []byte, gasUsed uint64, revert string)

// Served records one answered query.
type Served struct {
	Method       proto.Method
	Kind         proto.Kind
	ResponseType proto.ResponseType
	Payment      uint64
	Status       proto.Status
}

// Node answers queries for one node account.
type Node struct {
	id     proto.AccountID
	logger log.Logger

	mu        sync.Mutex
	costs     map[proto.Kind]uint64
	balances  map[proto.AccountID]uint64
	receipts  map[string]*proto.TransactionReceipt
	contracts map[proto.ContractID]ContractFunc
	busy      int
	misanswer proto.Kind
	served    []Served
}

type Option func(*Node)

func WithLogger(l log.Logger) Option {
	return func(n *Node) { n.logger = l }
}

func New(id proto.AccountID, options ...Option) *Node {
	n := &Node{
		id:        id,
		logger:    log.NewNopLogger(),
		costs:     make(map[proto.Kind]uint64),
		balances:  make(map[proto.AccountID]uint64),
		receipts:  make(map[string]*proto.TransactionReceipt),
		contracts: make(map[proto.ContractID]ContractFunc),
	}
	for _, option := range options {
		option(n)
	}
	return n
}

func (n *Node) AccountID() proto.AccountID {
	return n.id
}

// SetCost sets what queries of kind cost. Receipts are always free.
func (n *Node) SetCost(kind proto.Kind, tinybars uint64) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.costs[kind] = tinybars
	return n
}

func (n *Node) SetBalance(id proto.AccountID, tinybars uint64) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[id] = tinybars
	return n
}

func (n *Node) SetReceipt(id proto.TransactionID, r *proto.TransactionReceipt) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts[id.String()] = r
	return n
}

func (n *Node) SetContract(id proto.ContractID, fn ContractFunc) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contracts[id] = fn
	return n
}

// Busy makes the next count queries answer BUSY.
func (n *Node) Busy(count int) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.busy = count
	return n
}

// Misanswer makes the next answer carry a kind variant other than the one
// asked for.
func (n *Node) Misanswer(kind proto.Kind) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.misanswer = kind
	return n
}

// Served returns the queries answered so far.
func (n *Node) Served() []Served {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Served(nil), n.served...)
}

var errMethodMismatch = errors.New("method does not serve query kind")

// Serve implements transportlayer.Server.
func (n *Node) Serve(_ context.Context, m proto.Method, q *proto.Query) (*proto.Response, error) {
	if want, ok := proto.Methods[q.Kind]; !ok || want != m {
		return nil, fmt.Errorf("%s: %s: %w", m, q.Kind, errMethodMismatch)
	}
	hdr := q.Header()
	if hdr == nil {
		return nil, fmt.Errorf("%s: query header missing", q.Kind)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	resp, payment := n.answer(q, hdr)
	if n.misanswer != proto.KindNone {
		resp = answerWith(n.misanswer, resp.Header())
		n.misanswer = proto.KindNone
	}
	status := resp.Header().Status
	n.served = append(n.served, Served{
		Method:       m,
		Kind:         q.Kind,
		ResponseType: hdr.ResponseType,
		Payment:      payment,
		Status:       status,
	})
	_ = level.Debug(n.logger).Log("node", n.id, "method", m, "response_type", hdr.ResponseType, "payment", payment, "status", status)
	return resp, nil
}

func (n *Node) answer(q *proto.Query, hdr *proto.QueryHeader) (*proto.Response, uint64) {
	if n.busy > 0 {
		n.busy--
		return answerWith(q.Kind, n.header(hdr, proto.StatusBusy)), 0
	}

	var payment uint64
	if q.Kind != proto.KindTransactionGetReceipt {
		amount, status := n.checkPayment(hdr.Payment)
		if status != proto.StatusOK {
			return answerWith(q.Kind, n.header(hdr, status)), amount
		}
		payment = amount
		if hdr.ResponseType == proto.AnswerOnly && amount < n.costs[q.Kind] {
			return answerWith(q.Kind, n.header(hdr, proto.StatusInsufficientTxFee)), amount
		}
	}

	if hdr.ResponseType == proto.CostAnswer {
		h := n.header(hdr, proto.StatusOK)
		if q.Kind != proto.KindTransactionGetReceipt {
			h.Cost = n.costs[q.Kind]
		}
		return answerWith(q.Kind, h), payment
	}

	switch q.Kind {
	case proto.KindContractCallLocal:
		return n.call(q.ContractCallLocal, hdr), payment
	case proto.KindCryptoGetAccountBalance:
		return n.balance(q.CryptoGetAccountBalance, hdr), payment
	default:
		return n.receipt(q.TransactionGetReceipt, hdr), payment
	}
}

func (n *Node) call(body *proto.ContractCallLocalQuery, hdr *proto.QueryHeader) *proto.Response {
	if body.ContractID == nil {
		return answerWith(proto.KindContractCallLocal, n.header(hdr, proto.StatusInvalidContractID))
	}
	fn, ok := n.contracts[*body.ContractID]
	if !ok {
		return answerWith(proto.KindContractCallLocal, n.header(hdr, proto.StatusInvalidContractID))
	}
	result, gasUsed, revert := fn(body.FunctionParameters, body.Gas)
	status := proto.StatusOK
	switch {
	case revert != "":
		status = proto.StatusContractRevertExecuted
	case gasUsed > uint64(body.Gas):
		status = proto.StatusInsufficientGas
	}
	if body.MaxResultSize > 0 && int64(len(result)) > body.MaxResultSize {
		result = result[:body.MaxResultSize]
	}
	id := *body.ContractID
	return proto.NewContractCallLocalResponse(&proto.ContractCallLocalResponse{
		Header: n.header(hdr, status),
		FunctionResult: &proto.ContractFunctionResult{
			ContractID:         &id,
			ContractCallResult: result,
			ErrorMessage:       revert,
			GasUsed:            gasUsed,
		},
	})
}

func (n *Node) balance(body *proto.CryptoGetAccountBalanceQuery, hdr *proto.QueryHeader) *proto.Response {
	if body.AccountID == nil {
		return answerWith(proto.KindCryptoGetAccountBalance, n.header(hdr, proto.StatusInvalidAccountID))
	}
	balance, ok := n.balances[*body.AccountID]
	if !ok {
		return answerWith(proto.KindCryptoGetAccountBalance, n.header(hdr, proto.StatusInvalidAccountID))
	}
	id := *body.AccountID
	return proto.NewCryptoGetAccountBalanceResponse(&proto.CryptoGetAccountBalanceResponse{
		Header:    n.header(hdr, proto.StatusOK),
		AccountID: &id,
		Balance:   balance,
	})
}

func (n *Node) receipt(body *proto.TransactionGetReceiptQuery, hdr *proto.QueryHeader) *proto.Response {
	if body.TransactionID == nil {
		return answerWith(proto.KindTransactionGetReceipt, n.header(hdr, proto.StatusInvalidTransaction))
	}
	r, ok := n.receipts[body.TransactionID.String()]
	if !ok {
		return answerWith(proto.KindTransactionGetReceipt, n.header(hdr, proto.StatusReceiptNotFound))
	}
	receipt := *r
	return proto.NewTransactionGetReceiptResponse(&proto.TransactionGetReceiptResponse{
		Header:  n.header(hdr, proto.StatusOK),
		Receipt: &receipt,
	})
}

// checkPayment returns the amount transferred to the node, or the precheck
// status that rejects the payment.
func (n *Node) checkPayment(tx *proto.Transaction) (uint64, proto.Status) {
	if tx == nil || tx.SigMap == nil || len(tx.SigMap.SigPair) == 0 {
		return 0, proto.StatusInvalidTransaction
	}
	for _, sig := range tx.SigMap.SigPair {
		if len(sig.PubKeyPrefix) != ed25519.PublicKeySize ||
			!ed25519.Verify(ed25519.PublicKey(sig.PubKeyPrefix), tx.BodyBytes, sig.Ed25519) {
			return 0, proto.StatusInvalidSignature
		}
	}
	body, err := tx.Body()
	if err != nil {
		return 0, proto.StatusInvalidTransaction
	}
	if body.NodeAccountID == nil || *body.NodeAccountID != n.id {
		return 0, proto.StatusInvalidNodeAccount
	}
	if body.TransactionID == nil || body.TransactionID.AccountID == nil || body.CryptoTransfer == nil {
		return 0, proto.StatusInvalidTransaction
	}

	var amount int64
	for _, t := range body.CryptoTransfer.Transfers {
		if t.AccountID != nil && *t.AccountID == n.id && t.Amount > 0 {
			amount += t.Amount
		}
	}
	return uint64(amount), proto.StatusOK
}

func (n *Node) header(hdr *proto.QueryHeader, status proto.Status) *proto.ResponseHeader {
	return &proto.ResponseHeader{Status: status, ResponseType: hdr.ResponseType}
}

func answerWith(kind proto.Kind, hdr *proto.ResponseHeader) *proto.Response {
	switch kind {
	case proto.KindContractCallLocal:
		return proto.NewContractCallLocalResponse(&proto.ContractCallLocalResponse{Header: hdr})
	case proto.KindCryptoGetAccountBalance:
		return proto.NewCryptoGetAccountBalanceResponse(&proto.CryptoGetAccountBalanceResponse{Header: hdr})
	default:
		return proto.NewTransactionGetReceiptResponse(&proto.TransactionGetReceiptResponse{Header: hdr})
	}
}
