package grpcx

import (
	"google.golang.org/grpc/encoding"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
)

// CodecName is the gRPC content subtype carrying wire payloads as JSON.
const CodecName = "exthost-json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return codec.JSONStrict.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return codec.JSONStrict.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
