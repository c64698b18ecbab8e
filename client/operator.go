package client

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/util"
)

// derPrefix precedes the 32 byte seed in DER encoded ed25519 private keys.
const derPrefix = "302e020100300506032b657004220420"

// Operator is the account that pays for queries.
type Operator struct {
	AccountID  proto.AccountID
	PrivateKey ed25519.PrivateKey
}

// ParsePrivateKey accepts a hex encoded ed25519 seed, full private key or
// DER encoded seed.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), derPrefix)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	}
	return nil, fmt.Errorf("private key: %d bytes", len(b))
}

// Payment implements query.Network. It signs a transfer of amount from the
// operator to node.
func (c *Client) Payment(node proto.AccountID, amount uint64) (*proto.Transaction, error) {
	if c.operator == nil {
		return nil, ErrOperatorRequired
	}
	if amount > math.MaxInt64 {
		return nil, fmt.Errorf("payment %d overflows a transfer", amount)
	}
	payer := c.operator.AccountID
	body, err := proto.MarshalBody(&proto.TransactionBody{
		TransactionID: &proto.TransactionID{
			AccountID:  &payer,
			ValidStart: util.ValidStart(c.now()),
		},
		NodeAccountID:            &node,
		TransactionFee:           c.transactionFee,
		TransactionValidDuration: int64(c.validDuration.Seconds()),
		Memo:                     "query payment",
		CryptoTransfer: &proto.CryptoTransferTransactionBody{
			Transfers: []*proto.AccountAmount{
				{AccountID: &payer, Amount: -int64(amount)},
				{AccountID: &node, Amount: int64(amount)},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	key := c.operator.PrivateKey
	return &proto.Transaction{
		BodyBytes: body,
		SigMap: &proto.SignatureMap{
			SigPair: []*proto.SignaturePair{{
				PubKeyPrefix: key.Public().(ed25519.PublicKey),
				Ed25519:      ed25519.Sign(key, body),
			}},
		},
	}, nil
}
