// Package effect provides the building blocks used to compose request pipelines:
// sequential and parallel combinators, path and method operators, and the
// error stage that turns a failed pipeline into a structured response.
package effect

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SEffect/pkg/common"
)

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatus() int
}

// DataError is implemented by errors that carry a structured payload for the client.
type DataError interface {
	error
	ErrorData() any
}

// HTTPError represents an HTTP error with a status code, a message and an
// optional payload. When returned from a middleware or an effect, the default
// error effect uses its status and includes Message and Data in the response body.
type HTTPError struct {
	Status  int    // HTTP status code (e.g., 400, 404, 500)
	Message string // Error message sent in the response body
	Data    any    // Optional structured data sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// HTTPStatus implements StatusError.
func (e *HTTPError) HTTPStatus() int {
	return e.Status
}

// ErrorData implements DataError.
func (e *HTTPError) ErrorData() any {
	return e.Data
}

// NewHTTPError creates a new HTTPError. At most one data payload is kept.
func NewHTTPError(status int, message string, data ...any) *HTTPError {
	e := &HTTPError{Status: status, Message: message}
	if len(data) > 0 {
		e.Data = data[0]
	}
	return e
}

// ErrorBody is the JSON body produced by DefaultErrorEffect.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the "error" member of ErrorBody.
type ErrorDetail struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// StatusOf returns the HTTP status carried by err, or 500 when it carries none.
func StatusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) && se.HTTPStatus() > 0 {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// DefaultErrorEffect converts err into a response whose status is the error's
// declared status (500 if none) and whose body is
//
//	{"error": {"status": S, "message": M, "data": D}}
func DefaultErrorEffect(_ *common.Request, err error) *common.Response {
	status := StatusOf(err)

	detail := ErrorDetail{Status: status}
	var se StatusError
	if errors.As(err, &se) {
		if he, ok := se.(*HTTPError); ok {
			detail.Message = he.Message
		} else {
			detail.Message = se.Error()
		}
	} else if err != nil {
		detail.Message = err.Error()
	}

	var de DataError
	if errors.As(err, &de) {
		detail.Data = de.ErrorData()
	}

	return &common.Response{
		Status: status,
		Body:   ErrorBody{Error: detail},
	}
}

// ProvideErrorEffect returns custom if it is set and DefaultErrorEffect otherwise.
// A custom effect returning nil falls back to the default.
func ProvideErrorEffect(custom common.ErrorEffect) common.ErrorEffect {
	if custom == nil {
		return DefaultErrorEffect
	}
	return func(req *common.Request, err error) *common.Response {
		if res := custom(req, err); res != nil {
			return res
		}
		return DefaultErrorEffect(req, err)
	}
}
