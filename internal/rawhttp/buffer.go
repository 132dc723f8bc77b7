package rawhttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// BlockSize bounds every read issued against the transport.
	BlockSize = 4096
	// MaxHeadBytes bounds the status line plus header block.
	MaxHeadBytes = 64 << 10

	maxChunkLineBytes = 4096
	maxEmptyReads     = 100
)

var (
	crlf         = []byte("\r\n")
	headBoundary = []byte("\r\n\r\n")
)

// buffer accumulates transport reads behind an explicit read cursor.
// buf[:off] has been consumed, buf[off:] is the residue.
type buffer struct {
	buf []byte
	off int
}

func newBuffer(residue []byte) *buffer {
	b := &buffer{}
	if len(residue) > 0 {
		b.buf = make([]byte, len(residue), max(len(residue), BlockSize))
		copy(b.buf, residue)
	}
	return b
}

func (b *buffer) unread() []byte { return b.buf[b.off:] }

func (b *buffer) len() int { return len(b.buf) - b.off }

func (b *buffer) advance(n int) {
	b.off += n
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
	}
}

// compact moves the residue to the front once the consumed prefix is at
// least as large as it, so each byte is copied a bounded number of times.
func (b *buffer) compact() {
	if b.off == 0 || b.off < b.len() {
		return
	}
	n := copy(b.buf, b.buf[b.off:])
	b.buf = b.buf[:n]
	b.off = 0
}

func (b *buffer) grow(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	size := 2 * cap(b.buf)
	if size < len(b.buf)+n {
		size = len(b.buf) + n
	}
	grown := make([]byte, len(b.buf), size)
	copy(grown, b.buf)
	b.buf = grown
}

// fill issues reads of at most limit bytes until at least one byte arrives.
func (b *buffer) fill(r io.Reader, limit int) error {
	if limit <= 0 || limit > BlockSize {
		limit = BlockSize
	}
	b.compact()
	b.grow(limit)

	for empty := 0; empty < maxEmptyReads; empty++ {
		n, err := r.Read(b.buf[len(b.buf) : len(b.buf)+limit])
		b.buf = b.buf[:len(b.buf)+n]
		if n > 0 {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrConnectionBroken
			}
			return fmt.Errorf("%w: %w", ErrConnectionBroken, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrConnectionBroken, io.ErrNoProgress)
}

// ensure tops up the buffer until n unread bytes are held. Reads are capped
// at the deficit so nothing past the n-th byte is pulled from r.
func (b *buffer) ensure(r io.Reader, n int) error {
	for b.len() < n {
		if err := b.fill(r, n-b.len()); err != nil {
			return err
		}
	}
	return nil
}

// readHead returns the bytes preceding the first CRLFCRLF and advances past
// the boundary. Empty lines ahead of the status line are skipped.
func (b *buffer) readHead(r io.Reader) ([]byte, error) {
	scanned := 0
	for {
		for bytes.HasPrefix(b.unread(), crlf) {
			b.advance(len(crlf))
			scanned = 0
		}

		data := b.unread()
		if i := bytes.Index(data[scanned:], headBoundary); i >= 0 {
			end := scanned + i
			head := bytes.Clone(data[:end])
			b.advance(end + len(headBoundary))
			return head, nil
		}
		if len(data) > MaxHeadBytes {
			return nil, fmt.Errorf("%w: response head exceeds %d bytes", ErrFraming, MaxHeadBytes)
		}
		scanned = max(0, len(data)-len(headBoundary)+1)

		if err := b.fill(r, BlockSize); err != nil {
			return nil, err
		}
	}
}

// readLine returns the next CRLF-terminated line without its terminator.
// The returned slice aliases the buffer and is valid until the next fill.
func (b *buffer) readLine(r io.Reader) ([]byte, error) {
	scanned := 0
	for {
		data := b.unread()
		if i := bytes.Index(data[scanned:], crlf); i >= 0 {
			end := scanned + i
			line := data[:end:end]
			b.advance(end + len(crlf))
			return line, nil
		}
		if len(data) > maxChunkLineBytes {
			return nil, fmt.Errorf("%w: chunk length line exceeds %d bytes", ErrFraming, maxChunkLineBytes)
		}
		scanned = max(0, len(data)-len(crlf)+1)

		if err := b.fill(r, BlockSize); err != nil {
			return nil, err
		}
	}
}
