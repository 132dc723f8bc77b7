package httpclient

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// UserAgent is sent on every outbound request made through this package.
const UserAgent = "samvad-rawfetch/1.0"

// Options tunes the resty client built by New.
type Options struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// NewRestyHTTPClient returns a resty client with the given timeout and no retries.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return New(Options{Timeout: timeout})
}

// New builds a resty client. Retries fire on transport errors and 5xx responses.
func New(opts Options) *resty.Client {
	c := resty.New()
	c.SetTimeout(opts.Timeout)
	c.SetHeader("User-Agent", UserAgent)
	if opts.RetryCount > 0 {
		c.SetRetryCount(opts.RetryCount)
		if opts.RetryWait > 0 {
			c.SetRetryWaitTime(opts.RetryWait)
			c.SetRetryMaxWaitTime(4 * opts.RetryWait)
		}
		c.AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	}
	return c
}
