package middleware

import (
	"context"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/google/uuid"
)

// RequestIDHeader is the header read (and trusted) by RequestID when present.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the key used to store the request ID in the request context
type requestIDKey struct{}

// RequestID creates a middleware that assigns a unique id to each request and
// adds it to the request context and the X-Request-ID request header. An
// incoming X-Request-ID header is reused when trustHeader is true.
func RequestID(trustHeader bool) Middleware {
	return func(req *common.Request) (*common.Request, error) {
		id := ""
		if trustHeader && req.Header != nil {
			id = req.Header.Get(RequestIDHeader)
		}
		if id == "" {
			id = uuid.New().String()
		}
		if req.Header != nil {
			// The listener echoes this header on the response and in the access log.
			req.Header.Set(RequestIDHeader, id)
		}
		ctx := context.WithValue(req.Context(), requestIDKey{}, id)
		return req.WithContext(ctx), nil
	}
}

// GetRequestID extracts the request ID from the request.
// Returns an empty string if no request ID is found.
func GetRequestID(req *common.Request) string {
	return RequestIDFromContext(req.Context())
}

// RequestIDFromContext extracts the request ID from a context.
// Returns an empty string if no request ID is found.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
