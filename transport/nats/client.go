package nats

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/pquerna/ffjson/ffjson"
)

// Requester is the part of *nats.Conn a client needs.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Client wraps a request subject and provides a method that implements
// endpoint.Endpoint.
type Client struct {
	conn    Requester
	subject string
	enc     EncodeRequestFunc
	dec     DecodeResponseFunc
	before  []RequestFunc
}

func NewClient(
	conn Requester,
	subject string,
	enc EncodeRequestFunc,
	dec DecodeResponseFunc,
	options ...ClientOption,
) *Client {
	c := &Client{
		conn:    conn,
		subject: subject,
		enc:     enc,
		dec:     dec,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// ClientOption sets an optional parameter for clients.
type ClientOption func(*Client)

func ClientBefore(before ...RequestFunc) ClientOption {
	return func(c *Client) { c.before = append(c.before, before...) }
}

// Endpoint returns a usable endpoint that invokes the remote endpoint.
func (c Client) Endpoint() endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		body, err := c.enc(ctx, request)
		if err != nil {
			return nil, err
		}
		msg := Message{Header: make(map[string]string), Body: body}
		for _, f := range c.before {
			ctx = f(ctx, msg.Header)
		}
		data, err := ffjson.Marshal(&msg)
		if err != nil {
			return nil, err
		}

		reply, err := c.conn.RequestWithContext(ctx, c.subject, data)
		if err != nil {
			return nil, err
		}

		var out Message
		if err := ffjson.Unmarshal(reply.Data, &out); err != nil {
			return nil, err
		}
		if out.Error != "" {
			return nil, RemoteError{Message: out.Error}
		}
		return c.dec(ctx, out.Body)
	}
}
