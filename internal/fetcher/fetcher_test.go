package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/samvad-rawfetch/internal/rawhttp"
	"github.com/samvad-hq/samvad-rawfetch/pkg/publishers"
	"github.com/samvad-hq/samvad-rawfetch/pkg/targets"
)

// cannedSession replays a fixed byte stream and records requests.
type cannedSession struct {
	host   string
	r      *bytes.Reader
	writes bytes.Buffer
	closed bool
}

func (c *cannedSession) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *cannedSession) Write(p []byte) (int, error) { return c.writes.Write(p) }
func (c *cannedSession) Close() error                { c.closed = true; return nil }
func (c *cannedSession) Host() string                { return c.host }

// fakeDialer hands out one canned stream per dial, per host.
type fakeDialer struct {
	mu       sync.Mutex
	streams  map[string][]string
	sessions []*cannedSession
	dials    map[string]int
}

func newFakeDialer(streams map[string][]string) *fakeDialer {
	return &fakeDialer{streams: streams, dials: make(map[string]int)}
}

func (f *fakeDialer) dial(_ context.Context, host string) (rawhttp.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.streams[host]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w: no route to %s", rawhttp.ErrConnection, host)
	}
	f.streams[host] = queue[1:]
	f.dials[host]++
	s := &cannedSession{host: host, r: bytes.NewReader([]byte(queue[0]))}
	f.sessions = append(f.sessions, s)
	return s, nil
}

type recordingPublisher struct {
	events []publishers.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.events = append(r.events, evt)
	return 1, nil
}

type memStore struct {
	digests map[string]string
}

func (m *memStore) Unchanged(id, digest string) (bool, error) {
	return m.digests[id] == digest, nil
}

func (m *memStore) Remember(id, digest string) error {
	m.digests[id] = digest
	return nil
}

func htmlResponse(body string) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
}

func mustTarget(t *testing.T, id, url string) targets.Target {
	t.Helper()
	tg, err := targets.FromURL(url)
	if err != nil {
		t.Fatalf("FromURL(%q): %v", url, err)
	}
	tg.ID = id
	tg.Name = id
	return tg
}

func TestRunReusesConnectionPerHost(t *testing.T) {
	dialer := newFakeDialer(map[string][]string{
		"a.example": {htmlResponse("<title>One</title><p>first</p>") + htmlResponse("<p>second</p>")},
		"b.example": {htmlResponse("<p>third</p>")},
	})
	pub := &recordingPublisher{}
	svc := NewService(dialer.dial, pub, nil, nil)

	res, err := svc.Run(context.Background(), []targets.Target{
		mustTarget(t, "a1", "https://a.example/one"),
		mustTarget(t, "b1", "https://b.example/"),
		mustTarget(t, "a2", "https://a.example/two?x=1"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Fetched != 3 || res.Published != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if dialer.dials["a.example"] != 1 {
		t.Fatalf("expected one dial to a.example, got %d", dialer.dials["a.example"])
	}

	gotIDs := make([]string, 0, len(pub.events))
	for _, evt := range pub.events {
		gotIDs = append(gotIDs, evt.TargetID)
	}
	if strings.Join(gotIDs, ",") != "a1,a2,b1" {
		t.Fatalf("unexpected publish order %v", gotIDs)
	}
	if pub.events[0].Page.Title != "One" || pub.events[0].Page.Text != "first" {
		t.Fatalf("unexpected page %+v", pub.events[0].Page)
	}

	reqs := dialer.sessions[0].writes.String()
	want := "GET /one HTTP/1.1\r\nHost: a.example\r\n\r\nGET /two?x=1 HTTP/1.1\r\nHost: a.example\r\n\r\n"
	if reqs != want {
		t.Fatalf("requests = %q", reqs)
	}
	for _, s := range dialer.sessions {
		if !s.closed {
			t.Fatalf("session to %s left open", s.host)
		}
	}
}

func TestRunRedialsAfterBrokenConnection(t *testing.T) {
	dialer := newFakeDialer(map[string][]string{
		"a.example": {
			"HTTP/1.1 200 OK\r\nContent-Length: 50\r\n\r\nshort",
			htmlResponse("<p>ok</p>"),
		},
	})
	pub := &recordingPublisher{}
	svc := NewService(dialer.dial, pub, nil, nil)

	res, err := svc.Run(context.Background(), []targets.Target{
		mustTarget(t, "a1", "https://a.example/1"),
		mustTarget(t, "a2", "https://a.example/2"),
	})
	if !errors.Is(err, rawhttp.ErrConnectionBroken) {
		t.Fatalf("expected ErrConnectionBroken, got %v", err)
	}
	if res.Failed != 1 || res.Fetched != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if dialer.dials["a.example"] != 2 {
		t.Fatalf("expected a re-dial, got %d dials", dialer.dials["a.example"])
	}
	if len(pub.events) != 1 || pub.events[0].TargetID != "a2" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestRunCollectsDialErrors(t *testing.T) {
	dialer := newFakeDialer(map[string][]string{
		"b.example": {htmlResponse("<p>fine</p>")},
	})
	svc := NewService(dialer.dial, &recordingPublisher{}, nil, nil)

	res, err := svc.Run(context.Background(), []targets.Target{
		mustTarget(t, "a1", "https://a.example/"),
		mustTarget(t, "b1", "https://b.example/"),
	})
	if !errors.Is(err, rawhttp.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if !strings.Contains(err.Error(), "target a1") {
		t.Fatalf("error should name the target: %v", err)
	}
	if res.Fetched != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunSkipsUnchangedPages(t *testing.T) {
	body := htmlResponse("<p>same</p>")
	dialer := newFakeDialer(map[string][]string{
		"a.example": {body, body},
	})
	pub := &recordingPublisher{}
	store := &memStore{digests: make(map[string]string)}
	svc := NewService(dialer.dial, pub, store, nil)
	list := []targets.Target{mustTarget(t, "a1", "https://a.example/")}

	if _, err := svc.Run(context.Background(), list); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := svc.Run(context.Background(), list)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Unchanged != 1 || len(pub.events) != 1 {
		t.Fatalf("expected second pass to skip publish, result %+v events %d", res, len(pub.events))
	}
	if store.digests["a1"] != Digest("same") {
		t.Fatalf("digest not remembered: %q", store.digests["a1"])
	}
}

func TestRunDoesNotRememberWhenPublishFails(t *testing.T) {
	dialer := newFakeDialer(map[string][]string{
		"a.example": {htmlResponse("<p>x</p>")},
	})
	store := &memStore{digests: make(map[string]string)}
	svc := NewService(dialer.dial, &recordingPublisher{err: errors.New("sink down")}, store, nil)

	if _, err := svc.Run(context.Background(), []targets.Target{mustTarget(t, "a1", "https://a.example/")}); err == nil {
		t.Fatalf("expected publish error")
	}
	if _, ok := store.digests["a1"]; ok {
		t.Fatalf("digest should not be stored after failed publish")
	}
}

func TestRunRejectsEmptyList(t *testing.T) {
	svc := NewService(newFakeDialer(nil).dial, nil, nil, nil)
	if _, err := svc.Run(context.Background(), nil); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
}

func TestFetchOne(t *testing.T) {
	dialer := newFakeDialer(map[string][]string{
		"a.example": {"HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=ISO-8859-1\r\nContent-Length: 4\r\n\r\ncaf\xe9"},
	})
	svc := NewService(dialer.dial, nil, nil, nil)

	page, err := svc.FetchOne(context.Background(), mustTarget(t, "adhoc", "a.example/menu"))
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if page.Text != "café" || page.Charset != "ISO-8859-1" {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.StatusLine != "HTTP/1.1 200 OK" {
		t.Fatalf("status line = %q", page.StatusLine)
	}
	if !dialer.sessions[0].closed {
		t.Fatalf("session should be closed")
	}
}
