package rawhttp

import "bytes"

// BuildRequest formats a GET request carrying only the Host header, e.g.:
//
//	GET /search?q=go HTTP/1.1\r\n
//	Host: search.marginalia.nu\r\n
//	\r\n
//
// The query separator is written only when query is non-empty.
func BuildRequest(host, path, query string) []byte {
	if path == "" {
		path = "/"
	}

	var b bytes.Buffer
	b.Grow(len(path) + len(query) + len(host) + 32)
	b.WriteString("GET ")
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(host)
	b.WriteString("\r\n\r\n")
	return b.Bytes()
}
