package proto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/protobuf/ptypes/timestamp"
)

// AccountID identifies an account as shard.realm.num.
type AccountID struct {
	Shard   int64 `json:"shardNum"`
	Realm   int64 `json:"realmNum"`
	Account int64 `json:"accountNum"`
}

func (id AccountID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Account)
}

// ParseAccountID parses an account id in shard.realm.num form.
func ParseAccountID(s string) (AccountID, error) {
	shard, realm, num, err := parseEntityID(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("account id %q: %w", s, err)
	}
	return AccountID{Shard: shard, Realm: realm, Account: num}, nil
}

// ContractID identifies a smart contract instance as shard.realm.num.
type ContractID struct {
	Shard    int64 `json:"shardNum"`
	Realm    int64 `json:"realmNum"`
	Contract int64 `json:"contractNum"`
}

func (id ContractID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Contract)
}

// ParseContractID parses a contract id in shard.realm.num form.
func ParseContractID(s string) (ContractID, error) {
	shard, realm, num, err := parseEntityID(s)
	if err != nil {
		return ContractID{}, fmt.Errorf("contract id %q: %w", s, err)
	}
	return ContractID{Shard: shard, Realm: realm, Contract: num}, nil
}

func parseEntityID(s string) (shard, realm, num int64, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, ErrMalformedID
	}
	var vals [3]int64
	for i, p := range parts {
		v, perr := strconv.ParseInt(p, 10, 64)
		if perr != nil || v < 0 {
			return 0, 0, 0, ErrMalformedID
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// TransactionID is the payer account together with the moment the
// transaction becomes valid.
type TransactionID struct {
	AccountID  *AccountID           `json:"accountID,omitempty"`
	ValidStart *timestamp.Timestamp `json:"transactionValidStart,omitempty"`
}

func (id TransactionID) String() string {
	var account string
	if id.AccountID != nil {
		account = id.AccountID.String()
	}
	var secs int64
	var nanos int32
	if id.ValidStart != nil {
		secs, nanos = id.ValidStart.Seconds, id.ValidStart.Nanos
	}
	return fmt.Sprintf("%s@%d.%09d", account, secs, nanos)
}

// ParseTransactionID parses the account@seconds.nanos form String returns.
// The nanos part may be omitted.
func ParseTransactionID(s string) (TransactionID, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return TransactionID{}, fmt.Errorf("transaction id %q: %w", s, ErrMalformedID)
	}
	account, err := ParseAccountID(s[:at])
	if err != nil {
		return TransactionID{}, fmt.Errorf("transaction id %q: %w", s, err)
	}
	secs, nanos := s[at+1:], "0"
	if dot := strings.IndexByte(secs, '.'); dot >= 0 {
		secs, nanos = secs[:dot], secs[dot+1:]
	}
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return TransactionID{}, fmt.Errorf("transaction id %q: %w", s, ErrMalformedID)
	}
	nsec, err := strconv.ParseInt(nanos, 10, 32)
	if err != nil || nsec < 0 || nsec > 999999999 {
		return TransactionID{}, fmt.Errorf("transaction id %q: %w", s, ErrMalformedID)
	}
	return TransactionID{
		AccountID:  &account,
		ValidStart: &timestamp.Timestamp{Seconds: sec, Nanos: int32(nsec)},
	}, nil
}
