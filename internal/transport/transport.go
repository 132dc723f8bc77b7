// Package transport establishes the encrypted byte streams rawhttp clients
// speak over.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/samvad-hq/samvad-rawfetch/internal/rawhttp"
)

// DefaultPort is used when the host carries no explicit port.
const DefaultPort = 443

// Options controls dialling and per-read behaviour of a Session.
type Options struct {
	Port        int
	DialTimeout time.Duration
	// ReadTimeout, when positive, bounds every individual Read.
	ReadTimeout time.Duration
	// TLSConfig is cloned per dial; ServerName is always overwritten.
	TLSConfig *tls.Config
}

// Session is a TLS connection to a single host.
type Session struct {
	host        string
	conn        *tls.Conn
	readTimeout time.Duration
	deadline    time.Time
}

// Dial connects to host ("name" or "name:port") and completes the TLS
// handshake. Failures wrap rawhttp.ErrConnection.
func Dial(ctx context.Context, host string, opts Options) (*Session, error) {
	name, port, err := splitHostPort(host, opts.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rawhttp.ErrConnection, err)
	}

	serverName, err := toASCII(name)
	if err != nil {
		return nil, fmt.Errorf("%w: normalise host %q: %w", rawhttp.ErrConnection, name, err)
	}

	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(serverName, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", rawhttp.ErrConnection, host, err)
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.TLSConfig != nil {
		cfg = opts.TLSConfig.Clone()
	}
	cfg.ServerName = serverName
	cfg.NextProtos = []string{"http/1.1"}

	conn := tls.Client(raw, cfg)
	if opts.DialTimeout > 0 {
		hsCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		ctx = hsCtx
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: tls handshake with %s: %w", rawhttp.ErrConnection, host, err)
	}

	return &Session{host: host, conn: conn, readTimeout: opts.ReadTimeout}, nil
}

// Dialer adapts Dial to rawhttp.DialFunc.
func Dialer(opts Options) rawhttp.DialFunc {
	return func(ctx context.Context, host string) (rawhttp.Session, error) {
		sess, err := Dial(ctx, host, opts)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func (s *Session) Host() string { return s.host }

func (s *Session) Read(p []byte) (int, error) {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(s.readDeadline(time.Now())); err != nil {
			return 0, err
		}
	}
	return s.conn.Read(p)
}

// readDeadline is the per-read timeout from now, capped by the deadline set
// through SetDeadline.
func (s *Session) readDeadline(now time.Time) time.Time {
	dl := now.Add(s.readTimeout)
	if !s.deadline.IsZero() && s.deadline.Before(dl) {
		return s.deadline
	}
	return dl
}

func (s *Session) Write(p []byte) (int, error) { return s.conn.Write(p) }

// SetDeadline bounds every later read and write. The zero time clears it.
func (s *Session) SetDeadline(t time.Time) error {
	s.deadline = t
	return s.conn.SetDeadline(t)
}

func (s *Session) Close() error { return s.conn.Close() }

func splitHostPort(host string, defaultPort int) (string, int, error) {
	if defaultPort <= 0 {
		defaultPort = DefaultPort
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, fmt.Errorf("empty host")
	}

	name, portStr, err := net.SplitHostPort(host)
	if err != nil {
		// no port present
		return strings.Trim(host, "[]"), defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", host)
	}
	return name, port, nil
}

// toASCII converts internationalised names to their punycode form for SNI.
// IP literals pass through untouched.
func toASCII(name string) (string, error) {
	if net.ParseIP(name) != nil {
		return name, nil
	}
	return idna.Lookup.ToASCII(name)
}
