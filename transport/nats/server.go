package nats

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/nats-io/nats.go"
	"github.com/pquerna/ffjson/ffjson"
)

// Publisher is the part of *nats.Conn a server needs to reply.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Server wraps an endpoint and serves it to requests on a subject.
type Server struct {
	conn   Publisher
	e      endpoint.Endpoint
	dec    DecodeRequestFunc
	enc    EncodeResponseFunc
	before []RequestFunc
	logger log.Logger
}

func NewServer(
	conn Publisher,
	e endpoint.Endpoint,
	dec DecodeRequestFunc,
	enc EncodeResponseFunc,
	options ...ServerOption,
) *Server {
	s := &Server{
		conn:   conn,
		e:      e,
		dec:    dec,
		enc:    enc,
		logger: log.NewNopLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// ServerOption sets an optional parameter for servers.
type ServerOption func(*Server)

func ServerBefore(before ...RequestFunc) ServerOption {
	return func(s *Server) { s.before = append(s.before, before...) }
}

// ServerErrorLogger is used to log errors sent back to the requester.
func ServerErrorLogger(logger log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// ServeMsg is a nats.MsgHandler.
func (s *Server) ServeMsg(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	ctx := context.Background()

	var in Message
	if err := ffjson.Unmarshal(msg.Data, &in); err != nil {
		s.fail(msg.Reply, err)
		return
	}
	if in.Header == nil {
		in.Header = make(map[string]string)
	}
	for _, f := range s.before {
		ctx = f(ctx, in.Header)
	}

	request, err := s.dec(ctx, in.Body)
	if err != nil {
		s.fail(msg.Reply, err)
		return
	}
	response, err := s.e(ctx, request)
	if err != nil {
		s.fail(msg.Reply, err)
		return
	}
	body, err := s.enc(ctx, response)
	if err != nil {
		s.fail(msg.Reply, err)
		return
	}
	s.reply(msg.Reply, &Message{Body: body})
}

func (s *Server) fail(subj string, err error) {
	_ = s.logger.Log("err", err)
	s.reply(subj, &Message{Error: err.Error()})
}

func (s *Server) reply(subj string, m *Message) {
	data, err := ffjson.Marshal(m)
	if err != nil {
		_ = s.logger.Log("err", err)
		return
	}
	if err := s.conn.Publish(subj, data); err != nil {
		_ = s.logger.Log("err", err)
	}
}
