package rawhttp

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
)

// FramingKind names how the end of a response body is found.
type FramingKind int

const (
	FixedLength FramingKind = iota + 1
	Chunked
)

func (k FramingKind) String() string {
	switch k {
	case FixedLength:
		return "fixed-length"
	case Chunked:
		return "chunked"
	default:
		return fmt.Sprintf("framing(%d)", int(k))
	}
}

// Framing is the body framing decided once per response. Length is only
// meaningful for FixedLength.
type Framing struct {
	Kind   FramingKind
	Length int64
}

// SelectFraming prefers Content-Length, falls back to chunked transfer
// encoding and fails with ErrFraming when the head declares neither.
func SelectFraming(h HeaderList) (Framing, error) {
	if v, ok := h.Find(HeaderContentLength); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 || n > math.MaxInt {
			return Framing{}, fmt.Errorf("%w: invalid Content-Length %q", ErrFraming, v)
		}
		return Framing{Kind: FixedLength, Length: n}, nil
	}
	if h.HasPair(HeaderTransferEncoding, "chunked") {
		return Framing{Kind: Chunked}, nil
	}
	return Framing{}, fmt.Errorf("%w: response declares neither Content-Length nor chunked transfer encoding", ErrFraming)
}

// DecodeBody reads one body framed by f, starting from residue and topping up
// from r. It returns the body and whatever bytes were buffered past its end.
func DecodeBody(f Framing, residue []byte, r io.Reader) (body, rest []byte, err error) {
	b := newBuffer(residue)
	body, err = f.decode(b, r)
	if err != nil {
		return nil, nil, err
	}
	return body, bytes.Clone(b.unread()), nil
}

func (f Framing) decode(b *buffer, r io.Reader) ([]byte, error) {
	switch f.Kind {
	case FixedLength:
		return b.readFixed(r, int(f.Length))
	case Chunked:
		return b.readChunked(r)
	default:
		return nil, fmt.Errorf("%w: unknown framing %s", ErrFraming, f.Kind)
	}
}

func (b *buffer) readFixed(r io.Reader, n int) ([]byte, error) {
	if err := b.ensure(r, n); err != nil {
		return nil, err
	}
	body := bytes.Clone(b.unread()[:n])
	if body == nil {
		body = []byte{}
	}
	b.advance(n)
	return body, nil
}

func (b *buffer) readChunked(r io.Reader) ([]byte, error) {
	body := []byte{}
	for {
		line, err := b.readLine(r)
		if err != nil {
			return nil, err
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			b.dropTrailers()
			return body, nil
		}

		need := size + len(crlf)
		if err := b.ensure(r, need); err != nil {
			return nil, err
		}
		data := b.unread()
		if !bytes.Equal(data[size:need], crlf) {
			return nil, fmt.Errorf("%w: chunk data not followed by CRLF", ErrFraming)
		}
		body = append(body, data[:size]...)
		b.advance(need)
	}
}

// dropTrailers discards the trailer section after the last chunk when it is
// already buffered. It never reads from the transport.
func (b *buffer) dropTrailers() {
	data := b.unread()
	if bytes.HasPrefix(data, crlf) {
		b.advance(len(crlf))
		return
	}
	if i := bytes.Index(data, headBoundary); i >= 0 {
		b.advance(i + len(headBoundary))
	}
}

func parseChunkSize(line []byte) (int, error) {
	s := line
	if i := bytes.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	size, err := strconv.ParseUint(string(bytes.TrimSpace(s)), 16, 63)
	if err != nil || size > math.MaxInt-2 {
		return 0, fmt.Errorf("%w: invalid chunk length %q", ErrFraming, line)
	}
	return int(size), nil
}
