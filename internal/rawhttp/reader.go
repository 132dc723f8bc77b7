package rawhttp

import (
	"bytes"
	"io"
)

// ReadHead reads from r in BlockSize reads until the CRLFCRLF that ends the
// response head. It returns the head (status line and header lines, without
// the boundary) and the residue: bytes already read past the boundary that
// belong to the body and must be handed to DecodeBody.
//
// If r reports end-of-stream before the boundary, ReadHead returns
// ErrConnectionBroken and no head.
func ReadHead(r io.Reader) (head, residue []byte, err error) {
	b := &buffer{}
	head, err = b.readHead(r)
	if err != nil {
		return nil, nil, err
	}
	return head, bytes.Clone(b.unread()), nil
}
