package nats

import (
	"context"
	"encoding/json"
)

// Message is the envelope of requests and replies. NATS messages carry no
// headers, so request metadata such as trace context travels in Header.
type Message struct {
	Header map[string]string `json:"header,omitempty"`
	Body   json.RawMessage   `json:"body,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// EncodeRequestFunc encodes a request object into the envelope body.
type EncodeRequestFunc func(context.Context, interface{}) (json.RawMessage, error)

// DecodeRequestFunc extracts a request object from the envelope body.
type DecodeRequestFunc func(context.Context, json.RawMessage) (interface{}, error)

type EncodeResponseFunc func(context.Context, interface{}) (json.RawMessage, error)

type DecodeResponseFunc func(context.Context, json.RawMessage) (interface{}, error)

// RequestFunc reads or writes envelope headers. Clients run them before the
// request is sent and servers before it is decoded.
type RequestFunc func(context.Context, map[string]string) context.Context

// RemoteError is an error the serving side put in the reply.
type RemoteError struct {
	Message string
}

func (e RemoteError) Error() string {
	return "nats: remote: " + e.Message
}
