package effect

import (
	"fmt"
	"runtime/debug"

	"github.com/Suhaibinator/SEffect/pkg/common"
)

// PanicError is the error produced when an effect or middleware panics.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover wraps an effect so that a panic is returned as a *PanicError.
func Recover(e common.Effect) common.Effect {
	return func(req *common.Request) (res *common.Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				res = nil
				err = &PanicError{Value: rec, Stack: debug.Stack()}
			}
		}()
		return e(req)
	}
}

// RecoverMiddleware wraps a middleware so that a panic is returned as a *PanicError.
func RecoverMiddleware(m common.Middleware) common.Middleware {
	return func(req *common.Request) (out *common.Request, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				out = nil
				err = &PanicError{Value: rec, Stack: debug.Stack()}
			}
		}()
		return m(req)
	}
}
