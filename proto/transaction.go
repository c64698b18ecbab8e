package proto

import "github.com/pquerna/ffjson/ffjson"

type AccountAmount struct {
	AccountID *AccountID `json:"accountID,omitempty"`
	Amount    int64      `json:"amount"`
}

type CryptoTransferTransactionBody struct {
	Transfers []*AccountAmount `json:"transfers,omitempty"`
}

// TransactionBody is the signed part of a query payment.
type TransactionBody struct {
	TransactionID            *TransactionID                 `json:"transactionID,omitempty"`
	NodeAccountID            *AccountID                     `json:"nodeAccountID,omitempty"`
	TransactionFee           uint64                         `json:"transactionFee"`
	TransactionValidDuration int64                          `json:"transactionValidDuration"`
	Memo                     string                         `json:"memo,omitempty"`
	CryptoTransfer           *CryptoTransferTransactionBody `json:"cryptoTransfer,omitempty"`
}

type SignaturePair struct {
	PubKeyPrefix []byte `json:"pubKeyPrefix,omitempty"`
	Ed25519      []byte `json:"ed25519,omitempty"`
}

type SignatureMap struct {
	SigPair []*SignaturePair `json:"sigPair,omitempty"`
}

// Transaction carries encoded body bytes and the signatures over them.
type Transaction struct {
	BodyBytes []byte        `json:"bodyBytes,omitempty"`
	SigMap    *SignatureMap `json:"sigMap,omitempty"`
}

// MarshalBody encodes a body into the bytes that get signed.
func MarshalBody(body *TransactionBody) ([]byte, error) {
	return ffjson.Marshal(body)
}

// Body decodes the signed body bytes.
func (t *Transaction) Body() (*TransactionBody, error) {
	var body TransactionBody
	if err := ffjson.Unmarshal(t.BodyBytes, &body); err != nil {
		return nil, err
	}
	return &body, nil
}
