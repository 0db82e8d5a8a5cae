package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// DefaultPagerDutyEventsURL is the PagerDuty Events API v2 endpoint
const DefaultPagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyConfig configures the paging channel
type PagerDutyConfig struct {
	RoutingKey string
	EventsURL  string
	Source     string
	Timeout    time.Duration
}

// PagerDutyChannel pages on critical alerts through the Events API v2
type PagerDutyChannel struct {
	cfg        PagerDutyConfig
	httpClient *http.Client
	logger     *zap.Logger
}

type pagerDutyEvent struct {
	RoutingKey  string            `json:"routing_key"`
	EventAction string            `json:"event_action"`
	DedupKey    string            `json:"dedup_key"`
	Payload     *pagerDutyPayload `json:"payload,omitempty"`
}

type pagerDutyPayload struct {
	Summary       string         `json:"summary"`
	Source        string         `json:"source"`
	Severity      string         `json:"severity"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

// NewPagerDutyChannel creates the paging channel
func NewPagerDutyChannel(logger *zap.Logger, cfg PagerDutyConfig) *PagerDutyChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = DefaultPagerDutyEventsURL
	}
	if cfg.Source == "" {
		cfg.Source = "lexwatch"
	}
	return &PagerDutyChannel{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Timeout),
		logger:     logger.Named("pagerduty"),
	}
}

// Name implements Channel.
func (p *PagerDutyChannel) Name() string { return "pagerduty" }

// IsConfigured implements Channel.
func (p *PagerDutyChannel) IsConfigured() bool { return p.cfg.RoutingKey != "" }

// ShouldSend implements Channel. Only critical alerts page.
func (p *PagerDutyChannel) ShouldSend(severity alerts.Severity) bool {
	return severity == alerts.SeverityCritical
}

// DedupKey returns the PagerDuty incident key for an alert
func DedupKey(alert *alerts.Alert) string {
	return "lexwatch-" + alert.ID
}

// Send implements Channel. Non-critical alerts are skipped without error.
func (p *PagerDutyChannel) Send(ctx context.Context, alert *alerts.Alert) error {
	if !p.IsConfigured() {
		return ErrNotConfigured
	}
	if !p.ShouldSend(alert.Severity) {
		p.logger.Debug("skipping page for non-critical alert",
			zap.String("alert_id", alert.ID),
			zap.String("severity", alert.Severity.String()))
		return nil
	}

	details := map[string]any{
		"alert_id": alert.ID,
		"message":  alert.Message,
	}
	if len(alert.Metadata) > 0 {
		details["metadata"] = alert.Metadata
	}
	return p.post(ctx, pagerDutyEvent{
		RoutingKey:  p.cfg.RoutingKey,
		EventAction: "trigger",
		DedupKey:    DedupKey(alert),
		Payload: &pagerDutyPayload{
			Summary:       alert.Title,
			Source:        p.cfg.Source,
			Severity:      string(alert.Severity),
			Timestamp:     alert.Timestamp.UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
	})
}

// Resolve implements Resolver by resolving the incident opened for the alert.
func (p *PagerDutyChannel) Resolve(ctx context.Context, alert *alerts.Alert) error {
	if !p.IsConfigured() {
		return ErrNotConfigured
	}
	if !p.ShouldSend(alert.Severity) {
		return nil
	}
	return p.post(ctx, pagerDutyEvent{
		RoutingKey:  p.cfg.RoutingKey,
		EventAction: "resolve",
		DedupKey:    DedupKey(alert),
	})
}

func (p *PagerDutyChannel) post(ctx context.Context, event pagerDutyEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal pagerduty event: %w", err)
	}
	return postWithRetry(ctx, p.httpClient, request{
		url:         p.cfg.EventsURL,
		contentType: "application/json",
		body:        body,
	}, time.Second)
}
