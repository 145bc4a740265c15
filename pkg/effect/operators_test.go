package effect

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/pathmatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(req *common.Request) (*common.Response, error) {
	return common.NewResponse(http.StatusOK, map[string]any{
		"params": req.ParamsMap(),
		"query":  req.Query,
	}), nil
}

func TestMatchPathAndType(t *testing.T) {
	e := Pipe(echo, MatchPath("/:id"), MatchType("GET"))

	res, err := e(newRequest("GET", "/7?x=y"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, map[string]any{
		"params": map[string]string{"id": "7"},
		"query":  pathmatch.Query{"x": "y"},
	}, res.Body)

	res, err = e(newRequest("POST", "/7"))
	assert.NoError(t, err)
	assert.Nil(t, res)

	res, err = e(newRequest("GET", "/7/nested"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestMatchTypeWildcard(t *testing.T) {
	e := Pipe(echo, MatchType("*"))
	for _, method := range []string{"GET", "DELETE", "PATCH"} {
		res, err := e(newRequest(method, "/"))
		require.NoError(t, err)
		assert.NotNil(t, res, method)
	}
}

func TestMatchPathCombinerNesting(t *testing.T) {
	getUser := Pipe(echo, MatchPath("/:id"), MatchType("GET"))
	getUsers := Pipe(func(req *common.Request) (*common.Response, error) {
		return common.NewResponse(http.StatusOK, "list"), nil
	}, MatchPath("/"), MatchType("GET"))

	user := Pipe(CombineEffects(getUsers, getUser), MatchPath("/user", AsCombiner(), WithSuffix("*")))
	api := Pipe(user, MatchPath("/api/:version", AsCombiner(), WithSuffix("*")))

	res, err := api(newRequest("GET", "/api/v1/user/123?filter=all"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, map[string]string{"version": "v1", "id": "123"}, res.Body.(map[string]any)["params"])
	assert.Equal(t, pathmatch.Query{"filter": "all"}, res.Body.(map[string]any)["query"])

	res, err = api(newRequest("GET", "/api/v1/user/"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "list", res.Body)

	res, err = api(newRequest("GET", "/other/v1/user/1"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestMatchPathInvalidTemplate(t *testing.T) {
	_, err := Pipe(echo, MatchPath("/*/x"))(newRequest("GET", "/a/x"))
	assert.True(t, errors.Is(err, pathmatch.ErrInvalidTemplate))
}

func TestUse(t *testing.T) {
	authorize := func(req *common.Request) (*common.Request, error) {
		if req.Header.Get("Authorization") != "Bearer test" {
			return nil, nil
		}
		return req, nil
	}

	e := Pipe(echo, MatchType("POST"), Use(authorize))

	res, err := e(newRequest("POST", "/"))
	assert.NoError(t, err)
	assert.Nil(t, res)

	req := newRequest("POST", "/")
	req.Header.Set("Authorization", "Bearer test")
	res, err = e(req)
	assert.NoError(t, err)
	assert.NotNil(t, res)
}
