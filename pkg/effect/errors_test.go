package effect

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultErrorEffectWithHTTPError(t *testing.T) {
	err := NewHTTPError(http.StatusMethodNotAllowed, "test", map[string]string{"test": "test"})

	res := DefaultErrorEffect(&common.Request{}, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusMethodNotAllowed, res.Status)

	body, marshalErr := json.Marshal(res.Body)
	require.NoError(t, marshalErr)
	assert.JSONEq(t, `{"error":{"status":405,"message":"test","data":{"test":"test"}}}`, string(body))
}

func TestDefaultErrorEffectWithPlainError(t *testing.T) {
	res := DefaultErrorEffect(&common.Request{}, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)

	body, err := json.Marshal(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"status":500,"message":"boom"}}`, string(body))
}

func TestDefaultErrorEffectWithWrappedError(t *testing.T) {
	err := fmt.Errorf("loading user: %w", NewHTTPError(http.StatusNotFound, "User does not exist"))

	res := DefaultErrorEffect(&common.Request{}, err)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, ErrorBody{Error: ErrorDetail{Status: 404, Message: "User does not exist"}}, res.Body)
}

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) HTTPStatus() int { return http.StatusTeapot }

func TestDefaultErrorEffectWithCustomStatusError(t *testing.T) {
	res := DefaultErrorEffect(&common.Request{}, teapotError{})
	assert.Equal(t, http.StatusTeapot, res.Status)
	assert.Equal(t, "short and stout", res.Body.(ErrorBody).Error.Message)
}

func TestProvideErrorEffect(t *testing.T) {
	custom := func(req *common.Request, err error) *common.Response {
		if errors.Is(err, errSkip) {
			return nil
		}
		return &common.Response{Status: http.StatusBadGateway, Body: "custom"}
	}

	provided := ProvideErrorEffect(custom)
	assert.Equal(t, "custom", provided(&common.Request{}, errors.New("x")).Body)
	assert.Equal(t, http.StatusInternalServerError, provided(&common.Request{}, errSkip).Status)

	assert.Equal(t, http.StatusInternalServerError, ProvideErrorEffect(nil)(&common.Request{}, errors.New("x")).Status)
}

var errSkip = errors.New("skip")

func TestRecover(t *testing.T) {
	e := Recover(func(req *common.Request) (*common.Response, error) {
		panic(NewHTTPError(http.StatusConflict, "conflict"))
	})

	res, err := e(&common.Request{})
	assert.Nil(t, res)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, http.StatusConflict, StatusOf(err))
}

func TestRecoverMiddleware(t *testing.T) {
	m := RecoverMiddleware(func(req *common.Request) (*common.Request, error) {
		panic("nope")
	})

	out, err := m(&common.Request{})
	assert.Nil(t, out)
	assert.EqualError(t, err, "panic: nope")
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}
