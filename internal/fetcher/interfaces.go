package fetcher

import (
	"context"

	"github.com/samvad-hq/samvad-rawfetch/pkg/publishers"
)

// EventPublisher delivers pages downstream. It reports how many sinks
// accepted the event.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// DigestStore remembers the last digest seen per target.
type DigestStore interface {
	Unchanged(id, digest string) (bool, error)
	Remember(id, digest string) error
}
