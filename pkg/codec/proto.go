package codec

import (
	"errors"
	"io"

	"google.golang.org/protobuf/proto"
)

// ErrNotProtoMessage is returned when ProtoCodec is given a value that is not a proto.Message.
var ErrNotProtoMessage = errors.New("value does not implement proto.Message")

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and unmarshaling.
type ProtoCodec struct{}

// NewProtoCodec creates a new ProtoCodec instance.
func NewProtoCodec() *ProtoCodec {
	return &ProtoCodec{}
}

// ContentType implements Codec.
func (c *ProtoCodec) ContentType() string {
	return "application/x-protobuf"
}

// Encode writes v in protobuf wire format. v must be a proto.Message.
func (c *ProtoCodec) Encode(w io.Writer, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return ErrNotProtoMessage
	}
	b, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode reads r to the end and unmarshals it into v, which must be a proto.Message.
func (c *ProtoCodec) Decode(r io.Reader, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return ErrNotProtoMessage
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return proto.Unmarshal(b, msg)
}

// IsProtoMessage reports whether v is a protobuf message.
func IsProtoMessage(v any) bool {
	_, ok := v.(proto.Message)
	return ok
}
