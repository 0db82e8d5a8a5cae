package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 2
	userAgent      = "lexwatch-alerts/1"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// httpError wraps an error with a retryable flag.
type httpError struct {
	err       error
	status    int
	retryable bool
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

// isRetryable returns true if the error is a transient failure worth retrying.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.retryable
	}
	return true
}

// request describes a single outbound POST.
type request struct {
	url         string
	contentType string
	body        []byte
	username    string
	password    string
	bearer      string
}

// post executes a single HTTP POST and classifies the outcome.
func post(ctx context.Context, client *http.Client, r request) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(r.body))
	if err != nil {
		return &httpError{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", r.contentType)
	req.Header.Set("User-Agent", userAgent)
	if r.username != "" {
		req.SetBasicAuth(r.username, r.password)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &httpError{err: err, retryable: true}
	}
	defer func() {
		// Drain and close body to reuse connections.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &httpError{
		err:       fmt.Errorf("%s returned HTTP %d", RedactURL(r.url), resp.StatusCode),
		status:    resp.StatusCode,
		retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}

// postWithRetry retries transient failures with linear backoff (step, 2*step, ...).
func postWithRetry(ctx context.Context, client *http.Client, r request, step time.Duration) error {
	var lastErr error
	for attempt := range maxRetries + 1 {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * step)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		lastErr = post(ctx, client, r)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords, query parameter values and the path of
// well known secret-bearing webhook hosts.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.Host == "hooks.slack.com" {
		u.Path = "/services/REDACTED"
		u.RawPath = ""
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
