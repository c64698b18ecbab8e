package proto

import "strconv"

// Kind discriminates the populated body of a Query or Response envelope.
type Kind int32

const (
	KindNone Kind = iota
	KindContractCallLocal
	KindCryptoGetAccountBalance
	KindTransactionGetReceipt
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindContractCallLocal:
		return "ContractCallLocal"
	case KindCryptoGetAccountBalance:
		return "CryptoGetAccountBalance"
	case KindTransactionGetReceipt:
		return "TransactionGetReceipt"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ResponseType selects between a fee estimate and a real answer.
type ResponseType int32

const (
	AnswerOnly ResponseType = 0
	CostAnswer ResponseType = 2
)

func (t ResponseType) String() string {
	switch t {
	case AnswerOnly:
		return "ANSWER_ONLY"
	case CostAnswer:
		return "COST_ANSWER"
	}
	return "ResponseType(" + strconv.Itoa(int(t)) + ")"
}

// QueryHeader is the routing/payment metadata common to every query.
type QueryHeader struct {
	Payment      *Transaction `json:"payment,omitempty"`
	ResponseType ResponseType `json:"responseType"`
}

type ContractCallLocalQuery struct {
	Header             *QueryHeader `json:"header,omitempty"`
	ContractID         *ContractID  `json:"contractID,omitempty"`
	Gas                int64        `json:"gas"`
	FunctionParameters []byte       `json:"functionParameters,omitempty"`
	MaxResultSize      int64        `json:"maxResultSize"`
}

type CryptoGetAccountBalanceQuery struct {
	Header    *QueryHeader `json:"header,omitempty"`
	AccountID *AccountID   `json:"accountID,omitempty"`
}

type TransactionGetReceiptQuery struct {
	Header        *QueryHeader   `json:"header,omitempty"`
	TransactionID *TransactionID `json:"transactionID,omitempty"`
}

// Query is the request envelope. Exactly one body is set and Kind names it.
type Query struct {
	Kind                    Kind                          `json:"kind"`
	ContractCallLocal       *ContractCallLocalQuery       `json:"contractCallLocal,omitempty"`
	CryptoGetAccountBalance *CryptoGetAccountBalanceQuery `json:"cryptogetAccountBalance,omitempty"`
	TransactionGetReceipt   *TransactionGetReceiptQuery   `json:"transactionGetReceipt,omitempty"`
}

func NewContractCallLocalQuery(body *ContractCallLocalQuery) *Query {
	return &Query{Kind: KindContractCallLocal, ContractCallLocal: body}
}

func NewCryptoGetAccountBalanceQuery(body *CryptoGetAccountBalanceQuery) *Query {
	return &Query{Kind: KindCryptoGetAccountBalance, CryptoGetAccountBalance: body}
}

func NewTransactionGetReceiptQuery(body *TransactionGetReceiptQuery) *Query {
	return &Query{Kind: KindTransactionGetReceipt, TransactionGetReceipt: body}
}

// Header returns the header of the body selected by Kind, or nil.
func (q *Query) Header() *QueryHeader {
	switch q.Kind {
	case KindContractCallLocal:
		if q.ContractCallLocal != nil {
			return q.ContractCallLocal.Header
		}
	case KindCryptoGetAccountBalance:
		if q.CryptoGetAccountBalance != nil {
			return q.CryptoGetAccountBalance.Header
		}
	case KindTransactionGetReceipt:
		if q.TransactionGetReceipt != nil {
			return q.TransactionGetReceipt.Header
		}
	}
	return nil
}
