package publishers

import (
	"context"
	"fmt"
	"strings"
)

// Builder constructs a publisher from its validated config.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry resolves publisher types to builders.
type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register binds typ to b, replacing any earlier builder.
func (r *Registry) Register(typ string, b Builder) *Registry {
	r.builders[strings.ToLower(strings.TrimSpace(typ))] = b
	return r
}

// Build constructs the publisher for cfg.
func (r *Registry) Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	b, ok := r.builders[cfg.Type]
	if !ok || b == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return b(ctx, cfg, orNop(log))
}

// DefaultRegistry knows every built-in sink.
func DefaultRegistry() *Registry {
	return NewRegistry().
		Register(TypeStdout, newStdoutPublisher).
		Register(TypeHTTP, newHTTPPublisher).
		Register(TypeSQS, newSQSPublisher).
		Register(TypeSNS, newSNSPublisher).
		Register(TypeGCPPubSub, newGCPPubSubPublisher)
}

// BuildAll builds every config and routes it by its target filter. On error
// the publishers built so far are closed.
func BuildAll(ctx context.Context, reg *Registry, cfgs []PublisherConfig, log Logger) (*Fanout, error) {
	f := &Fanout{}
	for _, cfg := range cfgs {
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		f.Add(pub, cfg.Targets...)
	}
	return f, nil
}
