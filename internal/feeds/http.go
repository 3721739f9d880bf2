package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the rate-limited transport
type HTTPOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// httpDoer wraps an http.Client with a token bucket and exponential retries
type httpDoer struct {
	client          *http.Client
	limiter         *rate.Limiter
	maxRetryTimeout time.Duration
}

func newHTTPDoer(opts HTTPOptions) *httpDoer {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 15 * time.Second
	}
	return &httpDoer{
		client:          &http.Client{Timeout: opts.Timeout},
		limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		maxRetryTimeout: opts.MaxRetryTimeout,
	}
}

// do sends the request, retrying transport errors, 429 and 5xx. Other
// non-200 statuses fail at once.
func (d *httpDoer) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	operation := func() error {
		if err := d.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		resp, err = d.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			statusErr := &StatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = d.maxRetryTimeout

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// StatusError is a non-200 response from the feed
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
