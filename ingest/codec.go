package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/gamma-programme/rospitch/errors"
)

// Codec decodes transport payloads into adapter payload types.
type Codec interface {
	Name() string
	Unmarshal(data []byte, v any) error
}

// Codec names accepted by ParseCodec.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// JSON decodes rosbridge-style JSON messages.
type JSON struct{}

// Name returns "json".
func (JSON) Name() string { return CodecJSON }

// Unmarshal decodes data with encoding/json.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBOR decodes RFC 8949 messages.
type CBOR struct {
	mode cbor.DecMode
}

// NewCBOR creates a CBOR codec that rejects duplicate map keys.
func NewCBOR() (*CBOR, error) {
	mode, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		return nil, errors.WrapFatal(err, "CBOR", "NewCBOR", "build decode mode")
	}
	return &CBOR{mode: mode}, nil
}

// Name returns "cbor".
func (*CBOR) Name() string { return CodecCBOR }

// Unmarshal decodes data as CBOR.
func (c *CBOR) Unmarshal(data []byte, v any) error { return c.mode.Unmarshal(data, v) }

// ParseCodec returns the codec for name. The empty name selects JSON.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSON{}, nil
	case CodecCBOR:
		return NewCBOR()
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown payload codec %q", errors.ErrInvalidConfig, name),
			"ingest", "ParseCodec", "select codec")
	}
}
