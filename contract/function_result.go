package contract

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/l-vitaly/go-hashgraph/proto"
)

var ErrResultTooShort = errors.New("function result too short")

// LogInfo is one log entry emitted by a call.
type LogInfo struct {
	ContractID *proto.ContractID
	Bloom      []byte
	Topics     [][]byte
	Data       []byte
}

// FunctionResult is the outcome of a local contract call. The result
// getters read the ABI encoded return values by word index.
type FunctionResult struct {
	ContractID   *proto.ContractID
	Result       []byte
	ErrorMessage string
	Bloom        []byte
	GasUsed      uint64
	LogInfo      []LogInfo
}

func newFunctionResult(r *proto.ContractFunctionResult) FunctionResult {
	if r == nil {
		return FunctionResult{}
	}
	res := FunctionResult{
		ContractID:   r.ContractID,
		Result:       r.ContractCallResult,
		ErrorMessage: r.ErrorMessage,
		Bloom:        r.Bloom,
		GasUsed:      r.GasUsed,
	}
	for _, l := range r.LogInfo {
		if l == nil {
			continue
		}
		res.LogInfo = append(res.LogInfo, LogInfo{
			ContractID: l.ContractID,
			Bloom:      l.Bloom,
			Topics:     l.Topic,
			Data:       l.Data,
		})
	}
	return res
}

func (r FunctionResult) word(i int) ([]byte, error) {
	if i < 0 {
		return nil, fmt.Errorf("word %d: %w", i, ErrResultTooShort)
	}
	start := i * wordSize
	if start+wordSize > len(r.Result) {
		return nil, fmt.Errorf("word %d: %w", i, ErrResultTooShort)
	}
	return r.Result[start : start+wordSize], nil
}

func (r FunctionResult) GetUint256(i int) (*big.Int, error) {
	w, err := r.word(i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// GetUint64 reads the low 8 bytes of word i.
func (r FunctionResult) GetUint64(i int) (uint64, error) {
	w, err := r.word(i)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(w[wordSize-8:]), nil
}

func (r FunctionResult) GetInt64(i int) (int64, error) {
	v, err := r.GetUint64(i)
	return int64(v), err
}

func (r FunctionResult) GetBool(i int) (bool, error) {
	w, err := r.word(i)
	if err != nil {
		return false, err
	}
	return w[wordSize-1] != 0, nil
}

func (r FunctionResult) GetAddress(i int) (Address, error) {
	var a Address
	w, err := r.word(i)
	if err != nil {
		return a, err
	}
	copy(a[:], w[wordSize-len(a):])
	return a, nil
}

func (r FunctionResult) GetBytes32(i int) ([32]byte, error) {
	var b [32]byte
	w, err := r.word(i)
	if err != nil {
		return b, err
	}
	copy(b[:], w)
	return b, nil
}

// GetBytes follows the offset in word i to a length prefixed byte string.
func (r FunctionResult) GetBytes(i int) ([]byte, error) {
	off, err := r.GetUint64(i)
	if err != nil {
		return nil, err
	}
	if off%wordSize != 0 || off > uint64(len(r.Result)) {
		return nil, fmt.Errorf("offset %d: %w", off, ErrResultTooShort)
	}
	n, err := r.GetUint64(int(off / wordSize))
	if err != nil {
		return nil, err
	}
	start := off + wordSize
	if n > uint64(len(r.Result))-start {
		return nil, fmt.Errorf("length %d: %w", n, ErrResultTooShort)
	}
	return r.Result[start : start+n], nil
}

func (r FunctionResult) GetString(i int) (string, error) {
	b, err := r.GetBytes(i)
	return string(b), err
}
