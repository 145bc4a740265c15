package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
	"github.com/Suhaibinator/SEffect/pkg/pathmatch"
	"go.uber.org/zap"
)

// ErrUnauthorized is the error returned by the authentication middlewares.
// Its status is 401.
var ErrUnauthorized = effect.NewHTTPError(http.StatusUnauthorized, "Unauthorized")

// AuthProvider defines an interface for authentication providers.
// Different authentication mechanisms can implement this interface
// to be used with the AuthenticationWithProvider middleware.
type AuthProvider interface {
	// Authenticate returns true if the request carries valid credentials.
	Authenticate(req *common.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(req *common.Request) bool {
	username, password, ok := basicAuth(req)
	if !ok {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(expectedPassword)) == 1
}

// BearerTokenProvider provides Bearer Token Authentication.
// It can validate tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
// The validator function takes precedence over the ValidTokens map.
func (p *BearerTokenProvider) Authenticate(req *common.Request) bool {
	token, ok := bearerToken(req)
	if !ok {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication.
func (p *APIKeyProvider) Authenticate(req *common.Request) bool {
	key, ok := apiKey(req, p.Header, p.Query)
	return ok && p.ValidKeys[key]
}

// AuthenticationWithProvider is a middleware that checks if a request is authenticated
// using the provided auth provider. Failed attempts are logged and answered with 401.
func AuthenticationWithProvider(provider AuthProvider, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(req *common.Request) (*common.Request, error) {
		if !provider.Authenticate(req) {
			logger.Warn("Authentication failed",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("client_ip", GetClientIP(req)),
			)
			return nil, ErrUnauthorized
		}
		return req, nil
	}
}

// Authentication is a middleware that checks if a request is authenticated using a simple auth function.
func Authentication(authFunc func(*common.Request) bool) Middleware {
	return func(req *common.Request) (*common.Request, error) {
		if !authFunc(req) {
			return nil, ErrUnauthorized
		}
		return req, nil
	}
}

// BearerAuth creates a middleware that requires an "Authorization: Bearer <token>"
// header accepted by validator.
func BearerAuth(validator func(token string) bool, logger *zap.Logger) Middleware {
	return AuthenticationWithProvider(&BearerTokenProvider{Validator: validator}, logger)
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication.
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) Middleware {
	return AuthenticationWithProvider(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenMiddleware creates a middleware that uses Bearer Token Authentication
// against a fixed set of tokens.
func NewBearerTokenMiddleware(validTokens map[string]bool, logger *zap.Logger) Middleware {
	return AuthenticationWithProvider(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewAPIKeyMiddleware creates a middleware that uses API Key Authentication.
func NewAPIKeyMiddleware(validKeys map[string]bool, header, query string, logger *zap.Logger) Middleware {
	return AuthenticationWithProvider(&APIKeyProvider{
		ValidKeys: validKeys,
		Header:    header,
		Query:     query,
	}, logger)
}

// AuthenticationWithUser is a middleware that uses a custom auth function that returns a user object
// and adds it to the request context if authentication is successful.
// An error from authFunc that carries an HTTP status is returned as is; any other
// failure becomes ErrUnauthorized.
func AuthenticationWithUser[T any](authFunc func(*common.Request) (*T, error)) Middleware {
	return func(req *common.Request) (*common.Request, error) {
		user, err := authFunc(req)
		if err != nil || user == nil {
			var se effect.StatusError
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, ErrUnauthorized
		}
		ctx := context.WithValue(req.Context(), userKey[T](), user)
		return req.WithContext(ctx), nil
	}
}

// NewBearerTokenWithUserMiddleware creates a middleware that resolves the bearer
// token to a user object.
func NewBearerTokenWithUserMiddleware[T any](getUserFunc func(token string) (*T, error)) Middleware {
	return AuthenticationWithUser(func(req *common.Request) (*T, error) {
		token, ok := bearerToken(req)
		if !ok {
			return nil, errors.New("no bearer token found")
		}
		return getUserFunc(token)
	})
}

// GetUser retrieves the user from the request context.
// Returns nil if no user is found in the context.
func GetUser[T any](req *common.Request) *T {
	user, ok := req.Context().Value(userKey[T]()).(*T)
	if !ok {
		return nil
	}
	return user
}

func userKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func basicAuth(req *common.Request) (username, password string, ok bool) {
	if req.Header == nil {
		return "", "", false
	}
	return (&http.Request{Header: req.Header}).BasicAuth()
}

func bearerToken(req *common.Request) (string, bool) {
	if req.Header == nil {
		return "", false
	}
	authHeader := req.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func apiKey(req *common.Request, header, query string) (string, bool) {
	if header != "" && req.Header != nil {
		if key := req.Header.Get(header); key != "" {
			return key, true
		}
	}
	if query != "" {
		if key := pathmatch.ParseQuery(req.RawQuery).Get(query); key != "" {
			return key, true
		}
	}
	return "", false
}
