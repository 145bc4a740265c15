package listener

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/SEffect/pkg/codec"
	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestIDHeader is echoed from the request to the response when present.
const RequestIDHeader = "X-Request-ID"

// write sends res to w and returns the status actually written.
func (l *Listener) write(w http.ResponseWriter, req *common.Request, res *common.Response) int {
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	h := w.Header()
	for k, vs := range res.Headers {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if id := req.Header.Get(RequestIDHeader); id != "" && h.Get(RequestIDHeader) == "" {
		h.Set(RequestIDHeader, id)
	}

	body, contentType, err := l.encode(res.Body, h.Get("Content-Type"))
	if err != nil {
		l.logger.Error("Failed to encode response body",
			zap.Error(err),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		)
		status = http.StatusInternalServerError
		fallback := effect.DefaultErrorEffect(req, effect.NewHTTPError(status, http.StatusText(status)))
		h.Del("Content-Type")
		body, contentType, _ = l.encode(fallback.Body, "")
	}

	if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	if body != nil {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}

	w.WriteHeader(status)
	if len(body) > 0 && req.Method != http.MethodHead {
		if _, err := w.Write(body); err != nil {
			l.logger.Warn("Failed to write response",
				zap.Error(err),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("status", status),
			)
		}
	}
	return status
}

// encode renders a response body. It returns the bytes to write and the
// content type to use when the response does not set one.
func (l *Listener) encode(body any, contentType string) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/octet-stream", nil
	case string:
		if contentType != "" && !isJSON(contentType) {
			return []byte(b), "", nil
		}
	}

	c := codec.ForValue(body, l.codec)
	var buf bytes.Buffer
	if err := c.Encode(&buf, body); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), c.ContentType(), nil
}

func isJSON(contentType string) bool {
	c, ok := codec.ForContentType(contentType)
	return ok && c == codec.JSON
}

// logRequest writes the access log line of a finished request. Server errors
// are logged at Error, client errors and slow requests at Warn, the rest at Debug.
func (l *Listener) logRequest(req *common.Request, res *common.Response, route string, status int, duration time.Duration, sc trace.SpanContext) {
	if req.Err == nil {
		if l.config.DisableAccessLog {
			return
		}
		if l.config.AccessLogFilter != nil && !l.config.AccessLogFilter(req, res) {
			return
		}
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	}
	if route != "" {
		fields = append(fields, zap.String("route", route))
	}
	if id := req.Header.Get(RequestIDHeader); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if req.Err != nil {
		fields = append(fields, zap.Error(req.Err))
		var pe *effect.PanicError
		if errors.As(req.Err, &pe) {
			fields = append(fields, zap.ByteString("stack", pe.Stack))
		}
	}

	switch {
	case status >= http.StatusInternalServerError:
		l.logger.Error("Server error", fields...)
	case status >= http.StatusBadRequest:
		l.logger.Warn("Client error", fields...)
	case duration > l.slow:
		l.logger.Warn("Slow request", fields...)
	default:
		l.logger.Debug("Request", fields...)
	}
}
