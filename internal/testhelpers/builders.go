package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// ========================================
// Alert Builder
// ========================================

// AlertBuilder builds Alert instances for testing
type AlertBuilder struct {
	alert alerts.Alert
}

// NewAlertBuilder creates a new alert builder with defaults
func NewAlertBuilder() *AlertBuilder {
	return &AlertBuilder{
		alert: alerts.Alert{
			ID:        uuid.NewString(),
			Severity:  alerts.SeverityWarning,
			Title:     "Test alert",
			Message:   "Test alert message",
			Timestamp: time.Now(),
			Metadata:  alerts.Metadata{},
		},
	}
}

// WithID sets the alert ID
func (b *AlertBuilder) WithID(id string) *AlertBuilder {
	b.alert.ID = id
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(severity alerts.Severity) *AlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithTitle sets the title
func (b *AlertBuilder) WithTitle(title string) *AlertBuilder {
	b.alert.Title = title
	return b
}

// WithMessage sets the message
func (b *AlertBuilder) WithMessage(message string) *AlertBuilder {
	b.alert.Message = message
	return b
}

// WithMeta adds a metadata entry
func (b *AlertBuilder) WithMeta(key string, value any) *AlertBuilder {
	b.alert.Metadata[key] = value
	return b
}

// At sets the timestamp
func (b *AlertBuilder) At(ts time.Time) *AlertBuilder {
	b.alert.Timestamp = ts
	return b
}

// Resolved marks the alert resolved at the given time
func (b *AlertBuilder) Resolved(at time.Time) *AlertBuilder {
	b.alert.Resolved = true
	b.alert.ResolvedAt = &at
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() *alerts.Alert {
	a := b.alert
	a.Metadata = b.alert.Metadata.Clone()
	return &a
}
