package rawhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Session is an established, encrypted, bidirectional byte stream.
// Reads are bounded by the length of the buffer passed in.
type Session interface {
	io.ReadWriteCloser
	Host() string
}

// DialFunc establishes a Session to host.
type DialFunc func(ctx context.Context, host string) (Session, error)

// Logger is the logging surface the client relies on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
}

type nopLogger struct{}

func (nopLogger) DebugObj(string, string, interface{}) {}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger receiving state transitions.
func WithLogger(log Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// Response is a fully read response.
type Response struct {
	StatusLine string
	Headers    HeaderList
	Framing    Framing
	Body       []byte
	Charset    string
	Text       string
}

// Client issues GET requests over a single connection to one host.
// It is not safe for concurrent use. After any failed request the client
// is Broken and must be discarded.
type Client struct {
	host  string
	sess  Session
	carry []byte
	state State
	log   Logger
}

// NewClient dials host once and returns a client owning that connection.
// Dial failures are reported as ErrConnection.
func NewClient(ctx context.Context, host string, dial DialFunc, opts ...Option) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidURL)
	}
	if dial == nil {
		return nil, fmt.Errorf("dial func must not be nil")
	}

	sess, err := dial(ctx, host)
	if err != nil {
		if errors.Is(err, ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, host, err)
	}
	return NewClientWithSession(sess, opts...), nil
}

// NewClientWithSession wraps an already established session.
func NewClientWithSession(sess Session, opts ...Option) *Client {
	c := &Client{
		host:  sess.Host(),
		sess:  sess,
		state: StateInit,
		log:   nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the host the connection was established to.
func (c *Client) Host() string { return c.host }

// State returns the state reached by the most recent request.
func (c *Client) State() State { return c.state }

// Request fetches rawURL and returns the body decoded to text.
func (c *Client) Request(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Fetch fetches rawURL over the client's connection. The URL host must match
// the connection host.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if c.state == StateBroken {
		return nil, fmt.Errorf("%w: client must be discarded after a failed request", ErrConnectionBroken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := SplitURL(rawURL)
	if err != nil {
		return nil, err
	}
	if !sameHost(target.Host, c.host) {
		return nil, fmt.Errorf("%w: %s (connected to %s)", ErrHostMismatch, target.Host, c.host)
	}

	resp, err := c.roundTrip(ctx, target)
	if err != nil {
		c.transition(StateBroken)
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, target Target) (*Response, error) {
	c.transition(StateInit)
	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}

	if _, err := c.sess.Write(BuildRequest(c.host, target.Path, target.Query)); err != nil {
		return nil, fmt.Errorf("%w: write request: %w", ErrConnectionBroken, err)
	}
	c.transition(StateRequestSent)

	buf := newBuffer(c.carry)
	c.carry = nil
	head, err := buf.readHead(c.sess)
	if err != nil {
		return nil, fmt.Errorf("read response head: %w", err)
	}
	c.transition(StateHeadRead)

	headers := ParseHeaders(head)
	framing, err := SelectFraming(headers)
	if err != nil {
		return nil, err
	}

	c.transition(StateBodyDecoding)
	body, err := framing.decode(buf, c.sess)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", framing.Kind, err)
	}
	if buf.len() > 0 {
		c.carry = bytes.Clone(buf.unread())
	}

	charset := ResolveCharset(headers)
	text, err := DecodeText(body, charset)
	if err != nil {
		return nil, err
	}
	c.transition(StateDone)

	return &Response{
		StatusLine: headers.StatusLine(),
		Headers:    headers,
		Framing:    framing,
		Body:       body,
		Charset:    charset,
		Text:       text,
	}, nil
}

type deadlineSetter interface {
	SetDeadline(t time.Time) error
}

// applyDeadline installs the context deadline on the session, or clears
// whatever an earlier request left behind when ctx has none.
func (c *Client) applyDeadline(ctx context.Context) error {
	ds, ok := c.sess.(deadlineSetter)
	if !ok {
		return nil
	}
	dl, _ := ctx.Deadline()
	if err := ds.SetDeadline(dl); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrConnectionBroken, err)
	}
	return nil
}

func (c *Client) transition(next State) {
	prev := c.state
	c.state = next
	c.log.DebugObj("rawhttp state transition", "rawhttp_state", map[string]any{
		"host": c.host,
		"from": prev.String(),
		"to":   next.String(),
	})
}

// sameHost compares hosts case-insensitively, treating an explicit :443 as
// the default port.
func sameHost(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, defaultPortSuffix), strings.TrimSuffix(b, defaultPortSuffix))
}

const defaultPortSuffix = ":443"

// Close tears the connection down. The client cannot be used afterwards.
func (c *Client) Close() error {
	if c == nil || c.sess == nil {
		return nil
	}
	c.state = StateBroken
	return c.sess.Close()
}
