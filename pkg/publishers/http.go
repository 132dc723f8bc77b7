package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-rawfetch/pkg/httpclient"
)

// Headers set on every webhook delivery.
const (
	HeaderTarget = "X-Rawfetch-Target"
	HeaderDigest = "X-Rawfetch-Digest"
)

const httpRetryWait = 200 * time.Millisecond

// httpPublisher posts the page payload as JSON to a webhook.
type httpPublisher struct {
	id     string
	cfg    HTTPPublisherConfig
	client *resty.Client
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, _ Logger) (Publisher, error) {
	if err := cfg.HTTP.validate(); err != nil {
		return nil, err
	}
	c := *cfg.HTTP
	c.Method = strings.ToUpper(c.Method)
	if c.Method == "" {
		c.Method = httpDefaultMethod
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = httpDefaultTimeout
	}

	client := httpclient.New(httpclient.Options{
		Timeout:    time.Duration(c.TimeoutSeconds) * time.Second,
		RetryCount: c.RetryCount,
		RetryWait:  httpRetryWait,
	})
	client.SetHeaders(c.Headers)
	return &httpPublisher{id: cfg.ID, cfg: c, client: client}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderTarget, evt.TargetID).
		SetHeader(HeaderDigest, evt.Page.Digest).
		SetBody(evt.Payload()).
		Execute(h.cfg.Method, h.cfg.URL)
	if err != nil {
		return fmt.Errorf("deliver page %s: %w", evt.TargetID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("deliver page %s: webhook answered %s: %s", evt.TargetID, resp.Status(), clip(resp.Body(), 256))
	}
	return nil
}

func clip(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
