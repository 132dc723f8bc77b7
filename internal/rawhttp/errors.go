package rawhttp

import "errors"

var (
	// ErrConnection reports a failure to establish the encrypted transport.
	ErrConnection = errors.New("connection error")
	// ErrConnectionBroken reports that the peer closed the stream before a
	// framing boundary (head or body) was fully read.
	ErrConnectionBroken = errors.New("connection broken")
	// ErrFraming reports a response whose body framing cannot be determined
	// or whose chunked encoding is malformed.
	ErrFraming = errors.New("framing error")
	// ErrDecode reports body bytes that cannot be decoded under the resolved charset.
	ErrDecode = errors.New("decode error")
	// ErrHostMismatch reports a URL whose host differs from the connected host.
	ErrHostMismatch = errors.New("url host does not match connection host")
	// ErrInvalidURL reports a URL that is empty, unparsable or not https.
	ErrInvalidURL = errors.New("invalid url")
)
