// Package codec provides encoding and decoding functionality for different data formats.
package codec

import (
	"io"
	"mime"
	"strings"
)

// Codec encodes response bodies and decodes request bodies for one content type.
type Codec interface {
	// ContentType returns the media type written in the Content-Type header.
	ContentType() string

	// Encode serializes v to w.
	Encode(w io.Writer, v any) error

	// Decode deserializes the content of r into v, which must be a pointer
	// (or a message type the codec understands).
	Decode(r io.Reader, v any) error
}

// JSON and Proto are the codecs shipped with the package.
var (
	JSON  Codec = NewJSONCodec()
	Proto Codec = NewProtoCodec()
)

// ForContentType returns the codec registered for a Content-Type header value.
// Parameters such as charset are ignored.
func ForContentType(contentType string) (Codec, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}

	switch mediaType {
	case "application/json":
		return JSON, true
	case "application/x-protobuf", "application/protobuf":
		return Proto, true
	}
	if strings.HasSuffix(mediaType, "+json") {
		return JSON, true
	}
	return nil, false
}

// ForValue returns the codec suited to encode v: Proto for protobuf messages,
// fallback otherwise.
func ForValue(v any, fallback Codec) Codec {
	if IsProtoMessage(v) {
		return Proto
	}
	if fallback == nil {
		return JSON
	}
	return fallback
}
