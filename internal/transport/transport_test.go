package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-rawfetch/internal/rawhttp"
)

func newTLSServer(t *testing.T, handler http.Handler) (string, Options) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	return u.Host, Options{
		DialTimeout: 5 * time.Second,
		ReadTimeout: 5 * time.Second,
		TLSConfig:   &tls.Config{RootCAs: pool},
	}
}

func TestClientOverTLSKeepsConnectionAligned(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fixed", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "11")
		fmt.Fprint(w, "hello world")
	})
	mux.HandleFunc("/chunked", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, part := range []string{"Wiki", "pedia", "?" + r.URL.RawQuery} {
			fmt.Fprint(w, part)
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/latin", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.Header().Set("Content-Length", "4")
		w.Write([]byte("caf\xe9"))
	})
	host, opts := newTLSServer(t, mux)

	ctx := context.Background()
	client, err := rawhttp.NewClient(ctx, host, Dialer(opts))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	text, err := client.Request(ctx, "https://"+host+"/fixed")
	if err != nil || text != "hello world" {
		t.Fatalf("fixed = %q, %v", text, err)
	}

	resp, err := client.Fetch(ctx, "https://"+host+"/chunked?x=1")
	if err != nil {
		t.Fatalf("chunked: %v", err)
	}
	if resp.Framing.Kind != rawhttp.Chunked || resp.Text != "Wikipedia?x=1" {
		t.Fatalf("chunked = %+v", resp)
	}
	if !strings.HasPrefix(resp.StatusLine, "HTTP/1.1 200") {
		t.Fatalf("status line = %q", resp.StatusLine)
	}

	text, err = client.Request(ctx, "https://"+host+"/latin")
	if err != nil || text != "café" {
		t.Fatalf("latin = %q, %v", text, err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, Options{DialTimeout: time.Second})
	if !errors.Is(err, rawhttp.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestDialRejectsUntrustedCertificate(t *testing.T) {
	host, opts := newTLSServer(t, http.NotFoundHandler())
	opts.TLSConfig = &tls.Config{RootCAs: x509.NewCertPool()}

	_, err := Dial(context.Background(), host, opts)
	if !errors.Is(err, rawhttp.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantPort int
	}{
		{"example.com", "example.com", DefaultPort},
		{"example.com:8443", "example.com", 8443},
		{"[::1]:9000", "::1", 9000},
	}
	for _, tt := range tests {
		name, port, err := splitHostPort(tt.in, 0)
		if err != nil {
			t.Fatalf("splitHostPort(%q): %v", tt.in, err)
		}
		if name != tt.wantName || port != tt.wantPort {
			t.Fatalf("splitHostPort(%q) = %s, %d", tt.in, name, port)
		}
	}
	if _, _, err := splitHostPort("example.com:0", 0); err == nil {
		t.Fatalf("expected invalid port error")
	}
}

func TestToASCII(t *testing.T) {
	got, err := toASCII("bücher.example")
	if err != nil {
		t.Fatalf("toASCII: %v", err)
	}
	if got != "xn--bcher-kva.example" {
		t.Fatalf("toASCII = %q", got)
	}
	if got, _ := toASCII("127.0.0.1"); got != "127.0.0.1" {
		t.Fatalf("toASCII ip = %q", got)
	}
}

func TestReadDeadlineHonoursEarlierContextDeadline(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{readTimeout: 30 * time.Second}

	if got := s.readDeadline(now); !got.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("no deadline: got %v", got)
	}

	s.deadline = now.Add(2 * time.Second)
	if got := s.readDeadline(now); !got.Equal(s.deadline) {
		t.Fatalf("earlier deadline ignored: got %v", got)
	}

	s.deadline = now.Add(time.Minute)
	if got := s.readDeadline(now); !got.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("later deadline should not extend the read timeout: got %v", got)
	}
}
