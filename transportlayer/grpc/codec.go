package grpc

import (
	"github.com/pquerna/ffjson/ffjson"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype queries travel under.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec carries the JSON wire model over gRPC.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	return ffjson.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	return ffjson.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}
