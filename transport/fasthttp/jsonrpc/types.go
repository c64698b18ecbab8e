package jsonrpc

import (
	"context"
	"encoding/json"

	"github.com/go-kit/kit/endpoint"
)

const (
	// Version defines the version of the JSON RPC implementation
	Version string = "2.0"

	// ContentType defines the content type to be served.
	ContentType string = "application/json; charset=utf-8"
)

// Request is a JSON RPC 2.0 request object,
// http://www.jsonrpc.org/specification#request_object
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      *RequestID      `json:"id"`
}

// Response is a JSON RPC 2.0 response object,
// http://www.jsonrpc.org/specification#response_object
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      *RequestID      `json:"id"`
}

// RequestID is a string, number or null request id, kept as raw JSON so it
// is echoed back exactly.
// ffjson: skip
type RequestID struct {
	raw json.RawMessage
}

func (id *RequestID) UnmarshalJSON(b []byte) error {
	id.raw = append(id.raw[:0], b...)
	return nil
}

func (id *RequestID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// Int returns the ID as an integer value.
func (id *RequestID) Int() (int, error) {
	var v int
	err := json.Unmarshal(id.raw, &v)
	return v, err
}

// String returns the ID as a string value.
func (id *RequestID) String() (string, error) {
	var v string
	err := json.Unmarshal(id.raw, &v)
	return v, err
}

// EncodeRequestFunc encodes the params of an outgoing call.
type EncodeRequestFunc func(context.Context, interface{}) (json.RawMessage, error)

// DecodeResponseFunc decodes the result of a successful call.
type DecodeResponseFunc func(context.Context, json.RawMessage) (interface{}, error)

// DecodeRequestFunc decodes the params of an incoming call.
type DecodeRequestFunc func(context.Context, json.RawMessage) (interface{}, error)

// EncodeResponseFunc encodes the result of an incoming call.
type EncodeResponseFunc func(context.Context, interface{}) (json.RawMessage, error)

// EndpointCodec binds a server endpoint to its params and result codecs.
type EndpointCodec struct {
	Endpoint endpoint.Endpoint
	Decode   DecodeRequestFunc
	Encode   EncodeResponseFunc
}

// EndpointCodecMap maps JSON RPC method names to their codecs.
type EndpointCodecMap map[string]EndpointCodec
