package rawhttp

import "fmt"

// State tracks a client through one request.
type State int

const (
	StateInit State = iota
	StateRequestSent
	StateHeadRead
	StateBodyDecoding
	StateDone
	// StateBroken is terminal; the connection position is unknown.
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRequestSent:
		return "request_sent"
	case StateHeadRead:
		return "head_read"
	case StateBodyDecoding:
		return "body_decoding"
	case StateDone:
		return "done"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
