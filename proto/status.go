package proto

import (
	"errors"
	"strconv"
)

var ErrMalformedID = errors.New("malformed entity id, want shard.realm.num")

// Status is the precheck/receipt code reported by a node.
type Status int32

const (
	StatusOK                       Status = 0
	StatusInvalidTransaction       Status = 1
	StatusPayerAccountNotFound     Status = 2
	StatusInvalidNodeAccount       Status = 3
	StatusInvalidSignature         Status = 7
	StatusInsufficientTxFee        Status = 9
	StatusInsufficientPayerBalance Status = 10
	StatusBusy                     Status = 12
	StatusNotSupported             Status = 13
	StatusInvalidAccountID         Status = 15
	StatusInvalidContractID        Status = 16
	StatusReceiptNotFound          Status = 18
	StatusUnknown                  Status = 21
	StatusSuccess                  Status = 22
	StatusInsufficientGas          Status = 30
	StatusContractRevertExecuted   Status = 33
)

var statusNames = map[Status]string{
	StatusOK:                       "OK",
	StatusInvalidTransaction:       "INVALID_TRANSACTION",
	StatusPayerAccountNotFound:     "PAYER_ACCOUNT_NOT_FOUND",
	StatusInvalidNodeAccount:       "INVALID_NODE_ACCOUNT",
	StatusInvalidSignature:         "INVALID_SIGNATURE",
	StatusInsufficientTxFee:        "INSUFFICIENT_TX_FEE",
	StatusInsufficientPayerBalance: "INSUFFICIENT_PAYER_BALANCE",
	StatusBusy:                     "BUSY",
	StatusNotSupported:             "NOT_SUPPORTED",
	StatusInvalidAccountID:         "INVALID_ACCOUNT_ID",
	StatusInvalidContractID:        "INVALID_CONTRACT_ID",
	StatusReceiptNotFound:          "RECEIPT_NOT_FOUND",
	StatusUnknown:                  "UNKNOWN",
	StatusSuccess:                  "SUCCESS",
	StatusInsufficientGas:          "INSUFFICIENT_GAS",
	StatusContractRevertExecuted:   "CONTRACT_REVERT_EXECUTED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "STATUS(" + strconv.Itoa(int(s)) + ")"
}
