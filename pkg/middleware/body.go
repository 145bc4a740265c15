package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/Suhaibinator/SEffect/pkg/codec"
	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
)

// DefaultMaxBodySize is the body limit applied when BodyParserConfig.MaxBytes is zero.
const DefaultMaxBodySize int64 = 1 << 20

// ErrBodyParse is returned when a request body cannot be read or decoded.
var ErrBodyParse = effect.NewHTTPError(http.StatusBadRequest, "Request body parse error")

// ErrBodyTooLarge is returned when a request body exceeds the configured limit.
var ErrBodyTooLarge = effect.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")

// BodyParserConfig configures BodyParser.
type BodyParserConfig struct {
	// MaxBytes limits the size of the body. Zero means DefaultMaxBodySize,
	// a negative value disables the limit.
	MaxBytes int64
}

// BodyParser creates a middleware that reads the body of POST, PUT and PATCH
// requests into req.Body. JSON bodies are decoded into generic values,
// protobuf bodies are kept as []byte for the handler to decode, and any other
// content type is kept as a string. Other methods pass through untouched.
func BodyParser(cfg BodyParserConfig) Middleware {
	limit := cfg.MaxBytes
	if limit == 0 {
		limit = DefaultMaxBodySize
	}

	return func(req *common.Request) (*common.Request, error) {
		switch req.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			return req, nil
		}

		raw := req.Raw()
		if raw == nil || raw.Body == nil {
			return req, nil
		}

		var r io.Reader = raw.Body
		if limit > 0 {
			r = io.LimitReader(raw.Body, limit+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, ErrBodyParse
		}
		if limit > 0 && int64(len(data)) > limit {
			return nil, ErrBodyTooLarge
		}

		body, err := decodeBody(req.Header.Get("Content-Type"), data)
		if err != nil {
			return nil, ErrBodyParse
		}
		req.Body = body
		return req, nil
	}
}

func decodeBody(contentType string, data []byte) (any, error) {
	c, ok := codec.ForContentType(contentType)
	if !ok {
		return string(data), nil
	}
	if c == codec.Proto {
		return data, nil
	}

	var v any
	if err := c.Decode(bytes.NewReader(data), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeBody decodes the raw body kept by BodyParser into v using the codec
// registered for the request's Content-Type.
func DecodeBody(req *common.Request, v any) error {
	c, ok := codec.ForContentType(req.Header.Get("Content-Type"))
	if !ok {
		return ErrBodyParse
	}
	var data []byte
	switch b := req.Body.(type) {
	case []byte:
		data = b
	case string:
		data = []byte(b)
	default:
		return errors.New("request body was not kept in raw form")
	}
	if err := c.Decode(bytes.NewReader(data), v); err != nil {
		return ErrBodyParse
	}
	return nil
}
