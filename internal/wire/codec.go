package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the ledger protocol.
const CodecName = "json"

// Codec marshals ledger messages as JSON over gRPC framing.
type Codec struct{}

func init() { encoding.RegisterCodec(Codec{}) }

// Marshal encodes v as JSON.
func (Codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes JSON into v.
func (Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns CodecName.
func (Codec) Name() string { return CodecName }
