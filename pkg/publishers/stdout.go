package publishers

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// stdoutPublisher prints page text, or one JSON payload per line.
type stdoutPublisher struct {
	id   string
	json bool

	mu sync.Mutex
	w  io.Writer
}

func newStdoutPublisher(_ context.Context, cfg PublisherConfig, _ Logger) (Publisher, error) {
	asJSON := cfg.Stdout != nil && cfg.Stdout.Format == stdoutFormatJSON
	return &stdoutPublisher{id: cfg.ID, json: asJSON, w: os.Stdout}, nil
}

// NewWriterPublisher prints the text of every page to w.
func NewWriterPublisher(id string, w io.Writer) Publisher {
	return &stdoutPublisher{id: id, w: w}
}

func (s *stdoutPublisher) ID() string   { return s.id }
func (s *stdoutPublisher) Type() string { return TypeStdout }

func (s *stdoutPublisher) Publish(_ context.Context, evt Event) error {
	out := []byte(evt.Page.Text)
	if s.json {
		b, err := encodePayload(evt)
		if err != nil {
			return fmt.Errorf("encode page %s: %w", evt.TargetID, err)
		}
		out = b
	}
	out = append(out, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(out); err != nil {
		return fmt.Errorf("write page %s: %w", evt.TargetID, err)
	}
	return nil
}
