// Package fetcher drives rawhttp clients over a list of targets, turning
// each response into a page and handing it to the publishers.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-rawfetch/internal/domain"
	"github.com/samvad-hq/samvad-rawfetch/internal/extract"
	"github.com/samvad-hq/samvad-rawfetch/internal/logger"
	"github.com/samvad-hq/samvad-rawfetch/internal/rawhttp"
	"github.com/samvad-hq/samvad-rawfetch/pkg/publishers"
	"github.com/samvad-hq/samvad-rawfetch/pkg/targets"
)

// ErrNoTargets is returned by Run when there is nothing to fetch.
var ErrNoTargets = errors.New("no targets configured for fetching")

// Service fetches targets, reusing one connection per host.
type Service struct {
	dial      rawhttp.DialFunc
	publisher EventPublisher
	store     DigestStore
	log       logger.Logger
	now       func() time.Time
}

// NewService wires a fetcher. publisher and store may be nil.
func NewService(dial rawhttp.DialFunc, publisher EventPublisher, store DigestStore, log logger.Logger) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		dial:      dial,
		publisher: publisher,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// Result summarises a pass.
type Result struct {
	Fetched   int
	Unchanged int
	Published int
	Failed    int
}

// Run fetches every target once. Targets on the same host share a
// connection in list order; a failed request discards that connection and
// the next target on the host dials again. Per-target errors are joined.
func (s *Service) Run(ctx context.Context, list []targets.Target) (Result, error) {
	var res Result
	if s == nil || s.dial == nil {
		return res, fmt.Errorf("fetcher service is not initialized")
	}
	if len(list) == 0 {
		return res, ErrNoTargets
	}

	var errs []error
	for _, group := range groupByHost(list) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		errs = append(errs, s.runHost(ctx, group, &res)...)
	}
	return res, errors.Join(errs...)
}

type hostGroup struct {
	host    string
	targets []targets.Target
}

func groupByHost(list []targets.Target) []hostGroup {
	var groups []hostGroup
	idx := make(map[string]int)
	for _, t := range list {
		i, ok := idx[t.Host]
		if !ok {
			i = len(groups)
			idx[t.Host] = i
			groups = append(groups, hostGroup{host: t.Host})
		}
		groups[i].targets = append(groups[i].targets, t)
	}
	return groups
}

func (s *Service) runHost(ctx context.Context, group hostGroup, res *Result) []error {
	var (
		client *rawhttp.Client
		errs   []error
	)
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	for _, t := range group.targets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			return errs
		}

		if client == nil {
			c, err := rawhttp.NewClient(ctx, group.host, s.dial, rawhttp.WithLogger(s.log))
			if err != nil {
				res.Failed++
				errs = append(errs, s.targetError(t, err))
				continue
			}
			client = c
		}

		resp, err := client.Fetch(ctx, t.URL)
		if err != nil {
			res.Failed++
			errs = append(errs, s.targetError(t, err))
			if client.State() == rawhttp.StateBroken {
				client.Close()
				client = nil
			}
			continue
		}
		res.Fetched++

		if err := s.handle(ctx, t, resp, res); err != nil {
			errs = append(errs, s.targetError(t, err))
		}
	}
	return errs
}

func (s *Service) targetError(t targets.Target, err error) error {
	s.log.ErrorObj("target fetch failed", "target_error", map[string]any{
		"target_id": t.ID,
		"host":      t.Host,
		"error":     err.Error(),
	})
	return fmt.Errorf("target %s: %w", t.ID, err)
}

func (s *Service) handle(ctx context.Context, t targets.Target, resp *rawhttp.Response, res *Result) error {
	page, err := s.buildPage(t, resp)
	if err != nil {
		return err
	}

	if s.store != nil {
		unchanged, err := s.store.Unchanged(page.ID, page.Digest)
		if err != nil {
			return fmt.Errorf("check digest: %w", err)
		}
		if unchanged {
			res.Unchanged++
			s.log.DebugObj("page unchanged; skipping publish", "target_unchanged", map[string]any{
				"target_id": t.ID,
				"digest":    page.Digest,
			})
			return nil
		}
	}

	if s.publisher != nil {
		n, err := s.publisher.Publish(ctx, publishers.NewEvent(t.ID, t.Name, page))
		res.Published += n
		if err != nil {
			return fmt.Errorf("publish page: %w", err)
		}
	}

	if s.store != nil {
		if err := s.store.Remember(page.ID, page.Digest); err != nil {
			return fmt.Errorf("remember digest: %w", err)
		}
	}

	s.log.InfoObj("target fetched", "target_result", map[string]any{
		"target_id":   t.ID,
		"status_line": page.StatusLine,
		"charset":     page.Charset,
		"text_bytes":  len(page.Text),
	})
	return nil
}

func (s *Service) buildPage(t targets.Target, resp *rawhttp.Response) (domain.Page, error) {
	content, err := extract.Extract(resp.Text)
	if err != nil {
		return domain.Page{}, fmt.Errorf("extract text: %w", err)
	}
	return domain.Page{
		ID:         t.ID,
		URL:        t.URL,
		Host:       t.Host,
		StatusLine: resp.StatusLine,
		Charset:    resp.Charset,
		Title:      content.Title,
		Text:       content.Text,
		Digest:     Digest(content.Text),
		FetchedAt:  s.now().UTC(),
	}, nil
}

// FetchOne dials the target's host, fetches the single page and closes the
// connection. Nothing is stored or published.
func (s *Service) FetchOne(ctx context.Context, t targets.Target) (domain.Page, error) {
	if s == nil || s.dial == nil {
		return domain.Page{}, fmt.Errorf("fetcher service is not initialized")
	}
	client, err := rawhttp.NewClient(ctx, t.Host, s.dial, rawhttp.WithLogger(s.log))
	if err != nil {
		return domain.Page{}, err
	}
	defer client.Close()

	resp, err := client.Fetch(ctx, t.URL)
	if err != nil {
		return domain.Page{}, err
	}
	return s.buildPage(t, resp)
}

// Digest returns the hex sha256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
