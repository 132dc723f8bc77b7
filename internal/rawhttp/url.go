package rawhttp

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is a request URL split into the pieces the request line needs.
type Target struct {
	Host  string
	Path  string
	Query string
}

// SplitURL splits an https URL (or a scheme-less "host/path?query") into host,
// path and raw query. Fragments are dropped.
func SplitURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return Target{Host: u.Host, Path: path, Query: u.RawQuery}, nil
}
