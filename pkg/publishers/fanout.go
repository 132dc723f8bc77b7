package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

type route struct {
	pub     Publisher
	targets map[string]bool
}

func (r route) wants(targetID string) bool {
	return len(r.targets) == 0 || r.targets[targetID]
}

// Fanout hands each event to every publisher routed for its target.
type Fanout struct {
	routes []route
}

// Add routes pub for the given target ids, or for every target when none
// are given.
func (f *Fanout) Add(pub Publisher, targetIDs ...string) {
	if pub == nil {
		return
	}
	r := route{pub: pub}
	if len(targetIDs) > 0 {
		r.targets = make(map[string]bool, len(targetIDs))
		for _, id := range targetIDs {
			r.targets[id] = true
		}
	}
	f.routes = append(f.routes, r)
}

// Publish delivers evt and reports how many publishers accepted it. A failing
// publisher does not stop delivery to the rest.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil {
		return 0, nil
	}
	delivered := 0
	var errs []error
	for _, r := range f.routes {
		if !r.wants(evt.TargetID) {
			continue
		}
		if err := r.pub.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher %s: %w", r.pub.Type(), r.pub.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size is the number of routed publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.routes)
}

// Close releases publishers that hold clients.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, r := range f.routes {
		c, ok := r.pub.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher %s: %w", r.pub.ID(), err))
		}
	}
	return errors.Join(errs...)
}
