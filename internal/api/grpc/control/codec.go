package control

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype both sides use.
const CodecName = "json"

// jsonCodec marshals messages with encoding/json.
type jsonCodec struct{}

//nolint:gochecknoinits // Codecs must be registered before any connection is made.
func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Marshal implements encoding.Codec.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (jsonCodec) Name() string {
	return CodecName
}
