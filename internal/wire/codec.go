package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype this module registers its
// codec under ("application/grpc+json"). Clients must set it via
// grpc.CallContentSubtype so the server picks this codec instead of
// gRPC's default protobuf one.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec satisfies encoding.Codec without requiring messages to
// implement proto.Message, since there is no protoc-generated
// descriptor backing these types (see types.go).
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
