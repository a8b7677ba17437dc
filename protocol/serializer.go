package protocol

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Serializer defines the contract for serializing and deserializing command payloads.
// This allows different teams to choose their preferred format (JSON, CBOR, etc.)
// while interacting with the settlement engine.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. FillCommand) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// DefaultJSONSerializer encodes payloads as JSON.
type DefaultJSONSerializer struct{}

func (DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// CBORSerializer encodes payloads as deterministic (core) CBOR, which keeps
// command bytes stable for replay and deduplication.
type CBORSerializer struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORSerializer creates a CBORSerializer using core deterministic encoding.
func NewCBORSerializer() (*CBORSerializer, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBORSerializer{enc: enc, dec: dec}, nil
}

func (s *CBORSerializer) Marshal(v any) ([]byte, error) {
	return s.enc.Marshal(v)
}

func (s *CBORSerializer) Unmarshal(data []byte, v any) error {
	return s.dec.Unmarshal(data, v)
}
