// Package channels delivers alerts to external notification services.
//
// Every channel is best effort: failures are reported to the Dispatcher,
// which logs them and never propagates them to the alert producer.
package channels

import (
	"context"
	"errors"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// ErrNotConfigured is returned by Send when required secrets are missing
var ErrNotConfigured = errors.New("channel not configured")

// Channel is an external notification target (Slack, PagerDuty, SMS, ...).
type Channel interface {
	// Name returns the channel identifier used in logs and metrics.
	Name() string

	// IsConfigured reports whether the secrets and URLs the channel needs are present.
	IsConfigured() bool

	// ShouldSend reports whether the channel handles alerts of the given severity.
	ShouldSend(severity alerts.Severity) bool

	// Send delivers the alert. It must honor ctx cancellation.
	Send(ctx context.Context, alert *alerts.Alert) error
}

// Resolver is implemented by channels that can close what they opened,
// such as a paging incident.
type Resolver interface {
	Resolve(ctx context.Context, alert *alerts.Alert) error
}
