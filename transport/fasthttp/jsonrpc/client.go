package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/go-kit/kit/endpoint"
	"github.com/pquerna/ffjson/ffjson"
	"github.com/valyala/fasthttp"

	fasthttptransport "github.com/l-vitaly/go-hashgraph/transport/fasthttp"
)

// HTTPError is returned when a node answers with a status other than 200
// and a body that is not a JSON RPC error.
type HTTPError struct {
	Method     string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("jsonrpc: %s: http status %d", e.Method, e.StatusCode)
}

// Client calls one JSON RPC method at a fixed URI.
type Client struct {
	http   fasthttptransport.FastHTTPClient
	uri    string
	method string
	enc    EncodeRequestFunc
	dec    DecodeResponseFunc
	before []fasthttptransport.ClientRequestFunc
	after  []fasthttptransport.ClientResponseFunc
	seq    *atomic.Uint64
}

type clientRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      uint64          `json:"id"`
}

func NewClient(uri, method string, enc EncodeRequestFunc, dec DecodeResponseFunc, options ...ClientOption) *Client {
	c := &Client{
		http:   &fasthttp.Client{},
		uri:    uri,
		method: method,
		enc:    enc,
		dec:    dec,
		seq:    new(atomic.Uint64),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type ClientOption func(*Client)

// SetClient sets the fasthttp client requests are sent with.
func SetClient(client fasthttptransport.FastHTTPClient) ClientOption {
	return func(c *Client) { c.http = client }
}

// ClientBefore functions run on the request after the body is set.
func ClientBefore(before ...fasthttptransport.ClientRequestFunc) ClientOption {
	return func(c *Client) { c.before = append(c.before, before...) }
}

// ClientAfter functions run on the response before it is decoded.
func ClientAfter(after ...fasthttptransport.ClientResponseFunc) ClientOption {
	return func(c *Client) { c.after = append(c.after, after...) }
}

// ClientSequence numbers requests from seq, so that clients of one node
// never reuse a request id.
func ClientSequence(seq *atomic.Uint64) ClientOption {
	return func(c *Client) { c.seq = seq }
}

func (c *Client) Endpoint() endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		params, err := c.enc(ctx, request)
		if err != nil {
			return nil, err
		}
		id := c.seq.Add(1)
		body, err := ffjson.Marshal(&clientRequest{
			JSONRPC: Version,
			Method:  c.method,
			Params:  params,
			ID:      id,
		})
		if err != nil {
			return nil, err
		}

		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.uri)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType(ContentType)
		req.SetBody(body)
		for _, f := range c.before {
			ctx = f(ctx, req)
		}

		if err := fasthttptransport.Do(ctx, c.http, req, resp); err != nil {
			return nil, err
		}
		for _, f := range c.after {
			ctx = f(ctx, resp)
		}

		var res Response
		if err := ffjson.Unmarshal(resp.Body(), &res); err != nil || (res.Error == nil && resp.StatusCode() != fasthttp.StatusOK) {
			if resp.StatusCode() != fasthttp.StatusOK {
				return nil, &HTTPError{Method: c.method, StatusCode: resp.StatusCode()}
			}
			return nil, fmt.Errorf("jsonrpc: %s: %w", c.method, err)
		}
		if res.Error != nil {
			return nil, *res.Error
		}
		if res.ID != nil {
			if got, err := res.ID.Int(); err != nil || uint64(got) != id {
				return nil, fmt.Errorf("jsonrpc: %s: response id %s does not match request %d", c.method, res.ID.raw, id)
			}
		}
		return c.dec(ctx, res.Result)
	}
}
