package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage remembers what each target looked like on its last fetch.

// Store maps a target ID to the digest of its most recently published text.
type Store interface {
	Close() error
	// Unchanged reports whether id was last remembered with digest and the
	// record has not expired.
	Unchanged(id, digest string) (bool, error)
	Remember(id, digest string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	PageTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultPageTTL         = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend. The default ("none")
// keeps nothing and writes no files.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.PageTTL <= 0 {
		opts.PageTTL = defaultPageTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                           { return nil }
func (noopStore) Unchanged(string, string) (bool, error) { return false, nil }
func (noopStore) Remember(string, string) error          { return nil }
