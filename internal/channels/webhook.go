package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

const maxParallelWebhooks = 4

// WebhookConfig configures the generic webhook channel
type WebhookConfig struct {
	URLs        []string
	AuthToken   string
	MinSeverity alerts.Severity
	Timeout     time.Duration
	// RetryBackoff is the linear backoff step between attempts.
	RetryBackoff time.Duration
}

// WebhookChannel POSTs the raw alert JSON to every registered URL
type WebhookChannel struct {
	mu           sync.RWMutex
	urls         []string
	authToken    string
	minSeverity  alerts.Severity
	retryBackoff time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewWebhookChannel creates the webhook channel. Invalid URLs are logged
// and skipped.
func NewWebhookChannel(logger *zap.Logger, cfg WebhookConfig) *WebhookChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = alerts.SeverityInfo
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	w := &WebhookChannel{
		authToken:    cfg.AuthToken,
		minSeverity:  cfg.MinSeverity,
		retryBackoff: cfg.RetryBackoff,
		httpClient:   newHTTPClient(cfg.Timeout),
		logger:       logger.Named("webhook"),
	}
	for _, u := range cfg.URLs {
		if err := w.AddWebhook(u); err != nil {
			w.logger.Warn("ignoring webhook URL", zap.String("url", RedactURL(u)), zap.Error(err))
		}
	}
	return w
}

// Name implements Channel.
func (w *WebhookChannel) Name() string { return "webhook" }

// IsConfigured implements Channel.
func (w *WebhookChannel) IsConfigured() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.urls) > 0
}

// ShouldSend implements Channel.
func (w *WebhookChannel) ShouldSend(severity alerts.Severity) bool {
	return severity.AtLeast(w.minSeverity)
}

// AddWebhook registers a URL. Adding a URL twice is a no-op.
func (w *WebhookChannel) AddWebhook(rawURL string) error {
	if err := validateHTTPURL(rawURL); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.urls {
		if u == rawURL {
			return nil
		}
	}
	w.urls = append(w.urls, rawURL)
	return nil
}

// RemoveWebhook unregisters a URL. Returns false when it was not registered.
func (w *WebhookChannel) RemoveWebhook(rawURL string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, u := range w.urls {
		if u == rawURL {
			w.urls = append(w.urls[:i], w.urls[i+1:]...)
			return true
		}
	}
	return false
}

// URLs returns the registered URLs
func (w *WebhookChannel) URLs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.urls...)
}

// Send implements Channel. Each URL is delivered independently; the
// returned error joins every URL that failed.
func (w *WebhookChannel) Send(ctx context.Context, alert *alerts.Alert) error {
	urls := w.URLs()
	if len(urls) == 0 {
		return ErrNotConfigured
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(maxParallelWebhooks)
	for _, u := range urls {
		g.Go(func() error {
			err := postWithRetry(ctx, w.httpClient, request{
				url:         u,
				contentType: "application/json",
				body:        body,
				bearer:      w.authToken,
			}, w.retryBackoff)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", RedactURL(u), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
