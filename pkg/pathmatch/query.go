package pathmatch

import (
	"net/url"
	"strings"
)

// Query holds parsed query parameters. Values are one of:
//   - string, for a key seen once ("" for a bare key);
//   - []string, for a key repeated two or more times, in order;
//   - map[string]any, for bracket notation ("key[nested]=value"), whose values
//     follow the same two rules.
type Query map[string]any

// ParseQuery parses a raw query string. Empty input yields an empty Query.
func ParseQuery(raw string) Query {
	q := Query{}
	if raw == "" {
		return q
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		value = unescape(value)
		if key == "" {
			continue
		}

		if outer, inner, ok := splitBracket(key); ok {
			nested, isMap := q[outer].(map[string]any)
			if !isMap {
				nested = map[string]any{}
				q[outer] = nested
			}
			accumulate(nested, inner, value)
			continue
		}
		accumulate(q, key, value)
	}
	return q
}

// Get returns the first value for key, or "" if the key is absent or nested.
func (q Query) Get(key string) string {
	switch v := q[key].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Values returns every value for key.
func (q Query) Values(key string) []string {
	switch v := q[key].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	}
	return nil
}

func accumulate(m map[string]any, key, value string) {
	switch existing := m[key].(type) {
	case nil:
		m[key] = value
	case string:
		m[key] = []string{existing, value}
	case []string:
		m[key] = append(existing, value)
	default:
		// a nested map is not overwritten by a flat value
	}
}

// splitBracket splits "outer[inner]" into its two parts.
func splitBracket(key string) (outer, inner string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

func unescape(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}
