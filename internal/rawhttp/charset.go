package rawhttp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// DefaultCharset applies when Content-Type is absent or names no charset.
const DefaultCharset = "utf-8"

const charsetParam = "charset="

// ResolveCharset returns the token following "charset=" in Content-Type,
// or DefaultCharset.
func ResolveCharset(h HeaderList) string {
	v, ok := h.Find(HeaderContentType)
	if !ok {
		return DefaultCharset
	}
	i := indexFold(v, charsetParam)
	if i < 0 {
		return DefaultCharset
	}

	cs := v[i+len(charsetParam):]
	if strings.HasPrefix(cs, `"`) {
		cs = cs[1:]
		if end := strings.IndexByte(cs, '"'); end >= 0 {
			cs = cs[:end]
		}
	}
	if end := strings.IndexAny(cs, "; \t"); end >= 0 {
		cs = cs[:end]
	}
	if cs == "" {
		return DefaultCharset
	}
	return cs
}

// indexFold finds needle in s ignoring ASCII case. Offsets are byte offsets
// into s; non-ASCII bytes only ever match themselves.
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if asciiEqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func asciiEqualFold(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// DecodeText converts body to a string under the named charset. Unknown
// charsets and invalid UTF-8 fail with ErrDecode.
func DecodeText(body []byte, charset string) (string, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("%w: unsupported charset %q", ErrDecode, charset)
	}

	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		if !utf8.Valid(body) {
			return "", fmt.Errorf("%w: body is not valid utf-8", ErrDecode)
		}
		return string(body), nil
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s body: %w", ErrDecode, charset, err)
	}
	return string(out), nil
}
