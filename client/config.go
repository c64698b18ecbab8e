package client

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pquerna/ffjson/ffjson"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/retry"
	"github.com/l-vitaly/go-hashgraph/transport/fasthttp/jsonrpc"
	natstransport "github.com/l-vitaly/go-hashgraph/transport/nats"
	grpcl "github.com/l-vitaly/go-hashgraph/transportlayer/grpc"
)

const (
	TransportGRPC    = "grpc"
	TransportJSONRPC = "jsonrpc"
	TransportNATS    = "nats"
)

// Config is the JSON form of a client.
type Config struct {
	// Network maps node addresses to node account ids ("0.0.3").
	Network         map[string]string `json:"network"`
	Operator        *OperatorConfig   `json:"operator,omitempty"`
	MaxQueryPayment uint64            `json:"maxQueryPayment,omitempty"`
	Transport       string            `json:"transport,omitempty"`
	// NATSURL is required by the nats transport.
	NATSURL string       `json:"natsUrl,omitempty"`
	Retry   *RetryConfig `json:"retry,omitempty"`
}

type OperatorConfig struct {
	AccountID  string `json:"accountId"`
	PrivateKey string `json:"privateKey"`
}

// RetryConfig overrides retry.DefaultPolicy field by field. Durations use
// time.ParseDuration syntax.
type RetryConfig struct {
	MaxAttempts int    `json:"maxAttempts,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	MinBackoff  string `json:"minBackoff,omitempty"`
	MaxBackoff  string `json:"maxBackoff,omitempty"`
	RetryBusy   *bool  `json:"retryBusy,omitempty"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := ffjson.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Policy returns the retry policy the config describes.
func (rc *RetryConfig) Policy() (retry.Policy, error) {
	p := retry.DefaultPolicy()
	if rc == nil {
		return p, nil
	}
	if rc.MaxAttempts > 0 {
		p.MaxAttempts = rc.MaxAttempts
	}
	for _, d := range []struct {
		s   string
		dst *time.Duration
	}{
		{rc.Timeout, &p.Timeout},
		{rc.MinBackoff, &p.MinBackoff},
		{rc.MaxBackoff, &p.MaxBackoff},
	} {
		if d.s == "" {
			continue
		}
		v, err := time.ParseDuration(d.s)
		if err != nil {
			return p, fmt.Errorf("retry: %w", err)
		}
		*d.dst = v
	}
	if rc.RetryBusy != nil {
		p.RetryBusy = *rc.RetryBusy
	}
	return p, nil
}

// NewFromConfig creates a client from cfg. Options are applied after the
// config and take precedence.
func NewFromConfig(cfg *Config, options ...Option) (*Client, error) {
	network := make(map[string]proto.AccountID, len(cfg.Network))
	for address, s := range cfg.Network {
		id, err := proto.ParseAccountID(s)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", address, err)
		}
		network[address] = id
	}

	policy, err := cfg.Retry.Policy()
	if err != nil {
		return nil, err
	}
	opts := []Option{WithRetryPolicy(policy)}

	if cfg.Operator != nil {
		id, err := proto.ParseAccountID(cfg.Operator.AccountID)
		if err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		key, err := ParsePrivateKey(cfg.Operator.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		opts = append(opts, WithOperator(Operator{AccountID: id, PrivateKey: key}))
	}
	if cfg.MaxQueryPayment > 0 {
		opts = append(opts, WithMaxQueryPayment(cfg.MaxQueryPayment))
	}
	opts = append(opts, withDialerFactory(func(c *Client) (Dialer, error) {
		return dialer(cfg, c)
	}))
	return New(network, append(opts, options...)...)
}

func dialer(cfg *Config, c *Client) (Dialer, error) {
	switch cfg.Transport {
	case "", TransportGRPC:
		return grpcl.NewTransport(grpcl.WithTracer(c.tracer, c.logger)), nil
	case TransportJSONRPC:
		return jsonrpc.NewTransport(jsonrpc.WithTracer(c.tracer, c.logger)), nil
	case TransportNATS:
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("config: natsUrl required by the nats transport")
		}
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		return &natsDialer{
			Transport: natstransport.NewTransport(conn, natstransport.WithTracer(c.tracer, c.logger)),
			conn:      conn,
		}, nil
	}
	return nil, fmt.Errorf("config: unknown transport %q", cfg.Transport)
}

// natsDialer closes the connection it was configured with.
type natsDialer struct {
	*natstransport.Transport
	conn *nats.Conn
}

func (d *natsDialer) Close() error {
	d.conn.Close()
	return nil
}
