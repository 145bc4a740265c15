package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		config     *IPConfig
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "default uses first X-Forwarded-For entry",
			config:     nil,
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			remoteAddr: "10.0.0.2:1234",
			want:       "203.0.113.5",
		},
		{
			name:       "falls back to RemoteAddr without header",
			config:     DefaultIPConfig(),
			remoteAddr: "192.0.2.1:5678",
			want:       "192.0.2.1",
		},
		{
			name:       "X-Real-IP",
			config:     &IPConfig{Source: IPSourceXRealIP, TrustProxy: true},
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			remoteAddr: "10.0.0.2:1234",
			want:       "198.51.100.7",
		},
		{
			name:       "custom header",
			config:     &IPConfig{Source: IPSourceCustomHeader, CustomHeader: "CF-Connecting-IP", TrustProxy: true},
			headers:    map[string]string{"CF-Connecting-IP": "198.51.100.8"},
			remoteAddr: "10.0.0.2:1234",
			want:       "198.51.100.8",
		},
		{
			name:       "untrusted proxy ignores headers",
			config:     &IPConfig{Source: IPSourceXForwardedFor, TrustProxy: false},
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			remoteAddr: "10.0.0.2:1234",
			want:       "10.0.0.2",
		},
		{
			name:       "IPv6 with port",
			config:     &IPConfig{Source: IPSourceRemoteAddr},
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "IPv6 without port",
			config:     &IPConfig{Source: IPSourceRemoteAddr},
			remoteAddr: "2001:db8::1",
			want:       "2001:db8::1",
		},
		{
			name:       "garbage header falls back to RemoteAddr",
			config:     &IPConfig{Source: IPSourceXRealIP, TrustProxy: true},
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			remoteAddr: "192.0.2.9:80",
			want:       "192.0.2.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, "/", "")
			req.Raw().RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			out, err := ClientIP(tt.config)(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, GetClientIP(out))
		})
	}
}

func TestGetClientIPMissing(t *testing.T) {
	assert.Empty(t, GetClientIP(newRequest(http.MethodGet, "/", "")))
}
