package grpcx

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// JSONCodecName is the content subtype of calls encoded with JSONCodec
// ("application/grpc+json" on the wire).
const JSONCodecName = "json"

// JSONCodec encodes messages as JSON, for services whose messages are plain
// Go structs instead of generated protobuf types.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// JSONCallOption makes a client call use JSONCodec.
func JSONCallOption() grpc.CallOption {
	return grpc.CallContentSubtype(JSONCodecName)
}
