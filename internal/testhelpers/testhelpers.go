// Package testhelpers provides reusable testing utilities for lexwatch.
//
// This package contains:
// - HTTP test helpers (creating test requests, asserting responses)
// - A controllable clock for time-window tests
// - A recording notification channel
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	req := httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	req.Header = ctx.Request.Header.Clone()
	req.Header.Set("Content-Type", "application/json")
	ctx.Request = req
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Clock
// ========================================

// FakeClock is a manually advanced time source
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ========================================
// Recording Channel
// ========================================

// RecordingChannel is a notification channel that records what it was sent
type RecordingChannel struct {
	ChannelName string
	Configured  bool
	MinSeverity alerts.Severity
	Err         error
	Delay       time.Duration

	mu       sync.Mutex
	sent     []*alerts.Alert
	resolved []*alerts.Alert
}

// NewRecordingChannel creates a configured channel accepting every severity
func NewRecordingChannel(name string) *RecordingChannel {
	return &RecordingChannel{ChannelName: name, Configured: true, MinSeverity: alerts.SeverityInfo}
}

// Name returns the channel name
func (c *RecordingChannel) Name() string { return c.ChannelName }

// IsConfigured reports the Configured flag
func (c *RecordingChannel) IsConfigured() bool { return c.Configured }

// ShouldSend gates on MinSeverity
func (c *RecordingChannel) ShouldSend(severity alerts.Severity) bool {
	return severity.AtLeast(c.MinSeverity)
}

// Send records the alert, honoring Delay and returning Err
func (c *RecordingChannel) Send(ctx context.Context, alert *alerts.Alert) error {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	c.sent = append(c.sent, alert)
	c.mu.Unlock()
	return c.Err
}

// Resolve records a resolution notification
func (c *RecordingChannel) Resolve(ctx context.Context, alert *alerts.Alert) error {
	c.mu.Lock()
	c.resolved = append(c.resolved, alert)
	c.mu.Unlock()
	return c.Err
}

// Sent returns the alerts passed to Send
func (c *RecordingChannel) Sent() []*alerts.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*alerts.Alert(nil), c.sent...)
}

// Resolved returns the alerts passed to Resolve
func (c *RecordingChannel) Resolved() []*alerts.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*alerts.Alert(nil), c.resolved...)
}

// ========================================
// Concurrency Helpers
// ========================================

// ConcurrentTest runs a function concurrently multiple times and waits for completion
func ConcurrentTest(t *testing.T, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}

	wg.Wait()
}

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}
