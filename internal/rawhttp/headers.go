package rawhttp

import (
	"bytes"
	"strings"
)

// Header name tokens as they appear on the wire, trailing colon included.
const (
	HeaderContentLength    = "Content-Length:"
	HeaderTransferEncoding = "Transfer-Encoding:"
	HeaderContentType      = "Content-Type:"
)

// Header is one line of a response head.
type Header struct {
	Name  string
	Value string
}

// HeaderList keeps header lines in wire order. Duplicates are preserved and
// lookups return the first match.
type HeaderList []Header

// ParseHeaders splits a response head into lines. A line whose first token
// ends in a colon yields that token (colon kept) and the trimmed value; any
// other line, such as the status line, splits at the first whitespace.
func ParseHeaders(head []byte) HeaderList {
	lines := bytes.Split(head, crlf)
	out := make(HeaderList, 0, len(lines))
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out = append(out, parseHeaderLine(string(line)))
	}
	return out
}

func parseHeaderLine(line string) Header {
	ws := strings.IndexAny(line, " \t")
	if colon := strings.IndexByte(line, ':'); colon > 0 && (ws < 0 || colon < ws) {
		return Header{Name: line[:colon+1], Value: strings.TrimSpace(line[colon+1:])}
	}
	if ws < 0 {
		return Header{Name: line}
	}
	return Header{Name: line[:ws], Value: strings.TrimSpace(line[ws+1:])}
}

// Find returns the value of the first header named name. Names compare
// case-insensitively; the trailing colon may be omitted.
func (h HeaderList) Find(name string) (string, bool) {
	name = headerToken(name)
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			return hd.Value, true
		}
	}
	return "", false
}

// Values returns every value carried under name, in wire order.
func (h HeaderList) Values(name string) []string {
	name = headerToken(name)
	var out []string
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			out = append(out, hd.Value)
		}
	}
	return out
}

// HasPair reports whether some header named name carries exactly value,
// ignoring case.
func (h HeaderList) HasPair(name, value string) bool {
	name = headerToken(name)
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) && strings.EqualFold(hd.Value, value) {
			return true
		}
	}
	return false
}

// StatusLine returns the first line of the head when it is not a header.
// It is exposed as-is; status codes are not interpreted.
func (h HeaderList) StatusLine() string {
	if len(h) == 0 || strings.HasSuffix(h[0].Name, ":") {
		return ""
	}
	if h[0].Value == "" {
		return h[0].Name
	}
	return h[0].Name + " " + h[0].Value
}

func headerToken(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, ":") {
		return name
	}
	return name + ":"
}
