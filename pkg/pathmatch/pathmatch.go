// Package pathmatch converts route path templates into regular expressions and
// extracts URL and query parameters from request paths.
//
// A template is made of literal segments, named parameters (":name") and an
// optional trailing wildcard segment ("*"):
//
//	/api/:version/user/:id
//	/static/*
//
// Every compiled pattern is anchored at both ends and tolerates one optional
// trailing slash. Parameters are positional: the n-th name returned by Compile
// corresponds to the n-th capture group of the pattern. Wildcards never capture.
package pathmatch

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// Wildcard is the segment that matches the remainder of a path.
const Wildcard = "*"

// ErrInvalidTemplate is returned when a path template cannot be compiled.
var ErrInvalidTemplate = errors.New("invalid path template")

// Compile converts a path template into a regular expression and the ordered
// list of its parameter names. The suffix, if any, is appended to the template
// before it is parsed.
func Compile(path, suffix string) (*regexp.Regexp, []string, error) {
	template := Join(path, suffix)

	if template == "/" {
		return regexp.MustCompile(`^/?$`), nil, nil
	}

	segments := strings.Split(strings.TrimPrefix(template, "/"), "/")
	var (
		b     strings.Builder
		names []string
	)
	b.WriteString("^")

	for i, seg := range segments {
		switch {
		case seg == Wildcard:
			if i != len(segments)-1 {
				return nil, nil, fmt.Errorf("%w: wildcard must be the last segment in %q", ErrInvalidTemplate, path)
			}
			b.WriteString("/.*$")
			return regexp.MustCompile(b.String()), names, nil
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if !isParamName(name) {
				return nil, nil, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidTemplate, seg, path)
			}
			names = append(names, name)
			b.WriteString("/([^/]+)")
		default:
			b.WriteString("/")
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}

	b.WriteString("/?$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return re, names, nil
}

// MustCompile is like Compile but panics if the template is invalid.
func MustCompile(path, suffix string) (*regexp.Regexp, []string) {
	re, names, err := Compile(path, suffix)
	if err != nil {
		panic(err)
	}
	return re, names
}

// Join concatenates a prefix and a path into a clean template. The result
// always starts with '/', never contains empty segments and has no trailing
// slash unless it is the root.
func Join(prefix, path string) string {
	joined := httprouter.CleanPath(prefix + "/" + path)
	if len(joined) > 1 {
		joined = strings.TrimSuffix(joined, "/")
	}
	return joined
}

// ParamNames re-derives the named parameters of a template, in declaration order.
func ParamNames(template string) []string {
	var names []string
	for _, seg := range strings.Split(template, "/") {
		if strings.HasPrefix(seg, ":") && isParamName(seg[1:]) {
			names = append(names, seg[1:])
		}
	}
	return names
}

// StripQuery returns everything before the first '?'.
func StripQuery(u string) string {
	path, _ := SplitQuery(u)
	return path
}

// SplitQuery splits a request URI into its path and raw query string.
func SplitQuery(u string) (path, rawQuery string) {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i], u[i+1:]
	}
	return u, ""
}

// ExtractParams matches the query-stripped url against the template and zips
// the template's parameter names with the captured values. It returns empty
// params when the template does not match.
func ExtractParams(template, u string) httprouter.Params {
	re, names, err := Compile(template, "")
	if err != nil {
		return httprouter.Params{}
	}
	match := re.FindStringSubmatch(StripQuery(u))
	if match == nil {
		return httprouter.Params{}
	}
	return DecodeParams(names, match)
}

// DecodeParams pairs names with the capture groups of match (match[0] being
// the whole match) and percent-decodes each value. Malformed escapes are kept
// verbatim.
func DecodeParams(names []string, match []string) httprouter.Params {
	params := make(httprouter.Params, 0, len(names))
	for i, name := range names {
		if i+1 >= len(match) {
			break
		}
		value := match[i+1]
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		params = append(params, httprouter.Param{Key: name, Value: value})
	}
	return params
}

func isParamName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
