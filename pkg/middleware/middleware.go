// Package middleware provides a collection of request middlewares for SEffect listeners.
// Every middleware here is an ordinary common.Middleware: it receives the request,
// returns the (possibly enriched) request or an error that is routed to the error stage.
package middleware

import (
	"context"
	"time"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// Chain chains multiple middlewares together. They run in the order given.
func Chain(middlewares ...Middleware) Middleware {
	return effect.CombineMiddlewares(middlewares...)
}

type loggerKey struct{}

// Logger is a middleware that stores a request-scoped child of logger in the
// request context. The child carries the method, the path and, when RequestID
// ran before it, the request id.
func Logger(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(req *common.Request) (*common.Request, error) {
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		}
		if id := GetRequestID(req); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if ip := GetClientIP(req); ip != "" {
			fields = append(fields, zap.String("client_ip", ip))
		}
		ctx := context.WithValue(req.Context(), loggerKey{}, logger.With(fields...))
		return req.WithContext(ctx), nil
	}
}

// LoggerFrom returns the request-scoped logger stored by Logger.
// A no-op logger is returned when none was stored.
func LoggerFrom(req *common.Request) *zap.Logger {
	if l, ok := req.Context().Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Timeout is a middleware that sets a deadline on the request context.
// Stages that run after the deadline fail with context.DeadlineExceeded, which
// the listener reports as 408 Request Timeout.
func Timeout(timeout time.Duration) Middleware {
	return func(req *common.Request) (*common.Request, error) {
		parent := req.Context()
		ctx, cancel := context.WithTimeout(parent, timeout)
		// Release the timer once the inbound request is finished.
		context.AfterFunc(parent, cancel)
		return req.WithContext(ctx), nil
	}
}
