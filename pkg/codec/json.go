package codec

import (
	"encoding/json"
	"io"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
type JSONCodec struct {
	// Indent, when non-empty, pretty-prints encoded values.
	Indent string
}

// NewJSONCodec creates a new JSONCodec instance.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// ContentType implements Codec.
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Encode writes v as JSON.
func (c *JSONCodec) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if c.Indent != "" {
		enc.SetIndent("", c.Indent)
	}
	return enc.Encode(v)
}

// Decode reads a single JSON value from r into v.
// Numbers are decoded as json.Number when v is an *any, to keep integer precision.
func (c *JSONCodec) Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if _, ok := v.(*any); ok {
		dec.UseNumber()
	}
	return dec.Decode(v)
}
