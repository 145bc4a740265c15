package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SEffect/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For
	// If false, RemoteAddr will be used as a fallback for all sources
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// clientIPKey is the key used to store the client IP in the request context
type clientIPKey struct{}

// GetClientIP extracts the client IP stored by ClientIP.
func GetClientIP(req *common.Request) string {
	if ip, ok := req.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIP creates a middleware that extracts the client IP from the request
// and adds it to the request context
func ClientIP(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(req *common.Request) (*common.Request, error) {
		clientIP := extractClientIP(req, config)
		ctx := context.WithValue(req.Context(), clientIPKey{}, clientIP)
		return req.WithContext(ctx), nil
	}
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(req *common.Request, config *IPConfig) string {
	var ip string
	header := req.Header
	if header == nil {
		header = http.Header{}
	}
	remoteAddr := ""
	if raw := req.Raw(); raw != nil {
		remoteAddr = raw.RemoteAddr
	}

	switch config.Source {
	case IPSourceXForwardedFor:
		ip = extractIPFromXForwardedFor(header)
	case IPSourceXRealIP:
		ip = header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = remoteAddr
	default:
		ip = extractIPFromXForwardedFor(header)
	}

	// Untrusted or unusable proxy headers fall back to RemoteAddr
	if ip = cleanIP(ip); !config.TrustProxy || ip == "" {
		ip = cleanIP(remoteAddr)
	}
	return ip
}

// extractIPFromXForwardedFor returns the leftmost (original client) entry of X-Forwarded-For.
func extractIPFromXForwardedFor(header http.Header) string {
	first, _, _ := strings.Cut(header.Get("X-Forwarded-For"), ",")
	return strings.TrimSpace(first)
}

// cleanIP strips the port from an address and rejects values that are not IPs.
func cleanIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}
