package celeryconn

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Serializer turns envelopes and results into bytes and back.
// Implementations must be deterministic for identical inputs.
type Serializer interface {
	// ContentType is written into the content-type field of envelopes
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonSerializer struct{}

// JSON returns the default serializer (application/json)
func JSON() Serializer { return jsonSerializer{} }

func (jsonSerializer) ContentType() string                { return "application/json" }
func (jsonSerializer) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborSerializer struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a canonical CBOR serializer (application/cbor).
// Maps nested inside decoded values use string keys.
func CBOR() (Serializer, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborSerializer{enc: em, dec: dm}, nil
}

func (c cborSerializer) ContentType() string                { return "application/cbor" }
func (c cborSerializer) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborSerializer) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
