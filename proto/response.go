package proto

import "github.com/golang/protobuf/ptypes/timestamp"

// ResponseHeader is common to every response body.
type ResponseHeader struct {
	Status       Status       `json:"nodeTransactionPrecheckCode"`
	ResponseType ResponseType `json:"responseType"`
	Cost         uint64       `json:"cost"`
}

type ContractLogInfo struct {
	ContractID *ContractID `json:"contractID,omitempty"`
	Bloom      []byte      `json:"bloom,omitempty"`
	Topic      [][]byte    `json:"topic,omitempty"`
	Data       []byte      `json:"data,omitempty"`
}

type ContractFunctionResult struct {
	ContractID         *ContractID        `json:"contractID,omitempty"`
	ContractCallResult []byte             `json:"contractCallResult,omitempty"`
	ErrorMessage       string             `json:"errorMessage,omitempty"`
	Bloom              []byte             `json:"bloom,omitempty"`
	GasUsed            uint64             `json:"gasUsed"`
	LogInfo            []*ContractLogInfo `json:"logInfo,omitempty"`
}

type ContractCallLocalResponse struct {
	Header         *ResponseHeader         `json:"header,omitempty"`
	FunctionResult *ContractFunctionResult `json:"functionResult,omitempty"`
}

type CryptoGetAccountBalanceResponse struct {
	Header    *ResponseHeader `json:"header,omitempty"`
	AccountID *AccountID      `json:"accountID,omitempty"`
	Balance   uint64          `json:"balance"`
}

type TransactionReceipt struct {
	Status             Status               `json:"status"`
	AccountID          *AccountID           `json:"accountID,omitempty"`
	ContractID         *ContractID          `json:"contractID,omitempty"`
	ConsensusTimestamp *timestamp.Timestamp `json:"consensusTimestamp,omitempty"`
}

type TransactionGetReceiptResponse struct {
	Header  *ResponseHeader     `json:"header,omitempty"`
	Receipt *TransactionReceipt `json:"receipt,omitempty"`
}

// Response is the polymorphic response envelope. Kind tags the body the
// node claims to have populated.
type Response struct {
	Kind                    Kind                             `json:"kind"`
	ContractCallLocal       *ContractCallLocalResponse       `json:"contractCallLocal,omitempty"`
	CryptoGetAccountBalance *CryptoGetAccountBalanceResponse `json:"cryptogetAccountBalance,omitempty"`
	TransactionGetReceipt   *TransactionGetReceiptResponse   `json:"transactionGetReceipt,omitempty"`
}

func NewContractCallLocalResponse(body *ContractCallLocalResponse) *Response {
	return &Response{Kind: KindContractCallLocal, ContractCallLocal: body}
}

func NewCryptoGetAccountBalanceResponse(body *CryptoGetAccountBalanceResponse) *Response {
	return &Response{Kind: KindCryptoGetAccountBalance, CryptoGetAccountBalance: body}
}

func NewTransactionGetReceiptResponse(body *TransactionGetReceiptResponse) *Response {
	return &Response{Kind: KindTransactionGetReceipt, TransactionGetReceipt: body}
}

// Populated reports which body is actually set, regardless of Kind. It
// returns KindNone when no body or more than one body is set.
func (r *Response) Populated() Kind {
	kind, n := KindNone, 0
	if r.ContractCallLocal != nil {
		kind, n = KindContractCallLocal, n+1
	}
	if r.CryptoGetAccountBalance != nil {
		kind, n = KindCryptoGetAccountBalance, n+1
	}
	if r.TransactionGetReceipt != nil {
		kind, n = KindTransactionGetReceipt, n+1
	}
	if n != 1 {
		return KindNone
	}
	return kind
}

// Case returns the populated kind when it agrees with the Kind tag and
// KindNone otherwise.
func (r *Response) Case() Kind {
	if p := r.Populated(); p == r.Kind {
		return p
	}
	return KindNone
}

// Header returns the header of the populated body, or nil.
func (r *Response) Header() *ResponseHeader {
	switch r.Case() {
	case KindContractCallLocal:
		return r.ContractCallLocal.Header
	case KindCryptoGetAccountBalance:
		return r.CryptoGetAccountBalance.Header
	case KindTransactionGetReceipt:
		return r.TransactionGetReceipt.Header
	}
	return nil
}
