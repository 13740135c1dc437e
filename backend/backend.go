package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"gemini-proxy/logging"
	"gemini-proxy/metrics"
	"gemini-proxy/retry"
)

// HTTPClient represents the subset of *http.Client used by the backend client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	HTTPClient HTTPClient
	Retry      retry.Config
	// AttemptTimeout bounds each call when positive.
	AttemptTimeout time.Duration
	Metrics        *metrics.ForwardMetrics
	Logger         *logrus.Logger
	// Sleep replaces the backoff timer, used by tests.
	Sleep retry.SleepFunc
}

// Client represents a client to communicate with the upstream API.
type Client struct {
	httpClient     HTTPClient
	retry          retry.Config
	attemptTimeout time.Duration
	metrics        *metrics.ForwardMetrics
	log            *logrus.Logger
	sleep          retry.SleepFunc
}

// NewBackendClient creates a new Client, applying defaults for missing options.
func NewBackendClient(opts Options) *Client {
	c := &Client{
		httpClient:     opts.HTTPClient,
		retry:          opts.Retry,
		attemptTimeout: opts.AttemptTimeout,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		sleep:          opts.Sleep,
	}
	if c.httpClient == nil {
		// No client timeout: the network stack's own limits apply.
		c.httpClient = &http.Client{}
	}
	if c.retry.InitialDelay <= 0 {
		c.retry.InitialDelay = retry.DefaultInitialDelay
	}
	if c.log == nil {
		c.log = logging.GetLogger()
	}
	return c
}

// Forward sends the request to url and retries network errors and non-2xx
// answers with exponential backoff. The successful response is returned
// unread; the caller closes its body.
func (c *Client) Forward(ctx context.Context, method, url string, headers http.Header, body []byte) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) error {
		r, err := c.do(ctx, method, url, headers, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, &retry.Options{
		Sleep: c.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.Warnf("Upstream call failed, retrying in %dms... %s", delay.Milliseconds(), err)
			c.metrics.RecordRetry(delay)
		},
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, url string, headers http.Header, body []byte) (*http.Response, error) {
	c.metrics.RecordAttempt()

	cancel := func() {}
	if c.attemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	// Create a new HTTP request with context.
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build upstream request: %w", redact(err))
	}

	// Copy headers.
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("upstream request failed: %w", redact(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the attempt context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
