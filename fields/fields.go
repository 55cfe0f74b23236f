// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package fields

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielhkuo/taiyo/crypt"
)

// cacheBuster matches the &_=<digits> token appended by the client's web views.
var cacheBuster = regexp.MustCompile(`&_=\d+`)

// Fields maps a decrypted field name to its values in request order.
type Fields map[string][]string

// Parse decrypts a raw query string into Fields using the default codec.
// The second return value is rawQuery unchanged.
func Parse(rawQuery string) (Fields, string) {
	return ParseWith(crypt.Default, rawQuery)
}

// ParseWith is Parse with an explicit codec. A decryption failure yields
// empty Fields; pairs that fail to decode are kept as written.
func ParseWith(c *crypt.Codec, rawQuery string) (Fields, string) {
	if rawQuery == "" {
		return Fields{}, rawQuery
	}

	plain, err := c.Open(cacheBuster.ReplaceAllString(rawQuery, ""))
	if err != nil {
		return Fields{}, rawQuery
	}

	f := Fields{}
	for _, pair := range strings.Split(string(plain), "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key == "" || value == "" {
			continue
		}
		k := unescape(key)
		f[k] = append(f[k], unescape(value))
	}
	return f, rawQuery
}

// unescape decodes form encoding. Malformed percent escapes are kept as
// written instead of failing the whole query.
func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Empty reports whether no usable field was decoded.
func (f Fields) Empty() bool {
	return len(f) == 0
}

// Has reports whether key has at least one value.
func (f Fields) Has(key string) bool {
	return len(f[key]) > 0
}

// Get returns the first value for key, or "".
func (f Fields) Get(key string) string {
	if vs := f[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Int parses the first value for key as a base-10 integer.
func (f Fields) Int(key string) (int, error) {
	return strconv.Atoi(f.Get(key))
}

// Encode serialises f back to form encoding. Test clients pair it with
// crypt.Codec.Seal to build payloads.
func (f Fields) Encode() string {
	return url.Values(f).Encode()
}
