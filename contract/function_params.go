package contract

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/l-vitaly/go-hashgraph/proto"
)

const wordSize = 32

// Address is a 20 byte Solidity address.
type Address [20]byte

// ParseAddress decodes 40 hex digits, with or without a 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("address: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("address: %d bytes", len(b))
	}
	copy(a[:], b)
	return a, nil
}

// SolidityAddress is the address the ledger gives contract id: shard in 4
// bytes, then realm and number in 8 bytes each.
func SolidityAddress(id proto.ContractID) Address {
	var a Address
	binary.BigEndian.PutUint32(a[0:4], uint32(id.Shard))
	binary.BigEndian.PutUint64(a[4:12], uint64(id.Realm))
	binary.BigEndian.PutUint64(a[12:20], uint64(id.Contract))
	return a
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Selector is the first four bytes of the Keccak-256 hash of a canonical
// function signature such as "transfer(address,uint256)".
func Selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil))
	return sel
}

type argument struct {
	typ     string
	value   []byte
	dynamic bool
}

// FunctionParams builds the ABI encoded arguments of a function call.
// The first invalid argument is reported by Encode.
type FunctionParams struct {
	args []argument
	err  error
}

func NewFunctionParams() *FunctionParams {
	return &FunctionParams{}
}

func (p *FunctionParams) static(typ string, word []byte) *FunctionParams {
	p.args = append(p.args, argument{typ: typ, value: word})
	return p
}

func (p *FunctionParams) dynamic(typ string, data []byte) *FunctionParams {
	p.args = append(p.args, argument{typ: typ, value: data, dynamic: true})
	return p
}

func (p *FunctionParams) AddUint256(v *big.Int) *FunctionParams {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		if p.err == nil {
			p.err = fmt.Errorf("uint256 argument %d out of range", len(p.args))
		}
		v = new(big.Int)
	}
	return p.static("uint256", v.FillBytes(make([]byte, wordSize)))
}

func (p *FunctionParams) AddUint64(v uint64) *FunctionParams {
	word := make([]byte, wordSize)
	binary.BigEndian.PutUint64(word[wordSize-8:], v)
	return p.static("uint64", word)
}

// AddInt64 sign extends v to a full word.
func (p *FunctionParams) AddInt64(v int64) *FunctionParams {
	word := make([]byte, wordSize)
	if v < 0 {
		for i := range word {
			word[i] = 0xff
		}
	}
	binary.BigEndian.PutUint64(word[wordSize-8:], uint64(v))
	return p.static("int64", word)
}

func (p *FunctionParams) AddBool(v bool) *FunctionParams {
	word := make([]byte, wordSize)
	if v {
		word[wordSize-1] = 1
	}
	return p.static("bool", word)
}

func (p *FunctionParams) AddAddress(a Address) *FunctionParams {
	word := make([]byte, wordSize)
	copy(word[wordSize-len(a):], a[:])
	return p.static("address", word)
}

func (p *FunctionParams) AddBytes32(v [32]byte) *FunctionParams {
	return p.static("bytes32", append([]byte(nil), v[:]...))
}

func (p *FunctionParams) AddString(s string) *FunctionParams {
	return p.dynamic("string", []byte(s))
}

func (p *FunctionParams) AddBytes(b []byte) *FunctionParams {
	return p.dynamic("bytes", append([]byte(nil), b...))
}

// Signature is the canonical signature of function name taking p.
func (p *FunctionParams) Signature(name string) string {
	types := make([]string, len(p.args))
	for i, a := range p.args {
		types[i] = a.typ
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// Encode returns the selector of name followed by the encoded arguments.
func (p *FunctionParams) Encode(name string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	sel := Selector(p.Signature(name))

	head := make([]byte, 0, len(p.args)*wordSize)
	var tail []byte
	for _, a := range p.args {
		if !a.dynamic {
			head = append(head, a.value...)
			continue
		}
		head = append(head, uint256Word(uint64(len(p.args)*wordSize+len(tail)))...)
		tail = append(tail, uint256Word(uint64(len(a.value)))...)
		tail = append(tail, a.value...)
		if pad := len(a.value) % wordSize; pad != 0 {
			tail = append(tail, make([]byte, wordSize-pad)...)
		}
	}

	out := make([]byte, 0, len(sel)+len(head)+len(tail))
	out = append(out, sel[:]...)
	out = append(out, head...)
	return append(out, tail...), nil
}

func uint256Word(v uint64) []byte {
	word := make([]byte, wordSize)
	binary.BigEndian.PutUint64(word[wordSize-8:], v)
	return word
}
