package rawhttp

import (
	"bytes"
	"io"
)

// scriptReader replays fragments, one per Read, splitting a fragment only when
// the caller's buffer is smaller. It records how many bytes each Read asked for.
type scriptReader struct {
	frags     [][]byte
	pos       int
	requested []int
}

func newScript(frags ...string) *scriptReader {
	s := &scriptReader{}
	for _, f := range frags {
		s.frags = append(s.frags, []byte(f))
	}
	return s
}

func (s *scriptReader) Read(p []byte) (int, error) {
	s.requested = append(s.requested, len(p))
	if s.pos >= len(s.frags) {
		return 0, io.EOF
	}
	frag := s.frags[s.pos]
	n := copy(p, frag)
	if n < len(frag) {
		s.frags[s.pos] = frag[n:]
	} else {
		s.pos++
	}
	return n, nil
}

// remaining returns the bytes never handed out.
func (s *scriptReader) remaining() string {
	var b bytes.Buffer
	for _, f := range s.frags[s.pos:] {
		b.Write(f)
	}
	return b.String()
}

// fakeSession is a Session over a scriptReader that records writes.
type fakeSession struct {
	*scriptReader
	host    string
	written bytes.Buffer
	closed  bool
}

func newFakeSession(host string, frags ...string) *fakeSession {
	return &fakeSession{scriptReader: newScript(frags...), host: host}
}

func (f *fakeSession) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakeSession) Close() error                { f.closed = true; return nil }
func (f *fakeSession) Host() string                { return f.host }
