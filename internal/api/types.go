package api

import (
	"time"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/correlation"
	"github.com/lexwatch/lexwatch/internal/services"
)

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /auth/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ========== Alert Types ==========

// CreateAlertRequest is the request body for POST /api/alerts and
// POST /ingest/alerts.
type CreateAlertRequest struct {
	Severity string                 `json:"severity" validate:"required,severity"`
	Title    string                 `json:"title" validate:"required,max=500"`
	Message  string                 `json:"message" validate:"max=10000"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CreateAlertResponse reports the stored alert and whether the request
// was folded into an existing one.
type CreateAlertResponse struct {
	Alert        *alerts.Alert `json:"alert"`
	Deduplicated bool          `json:"deduplicated"`
}

// IngestResponse summarizes a provider webhook delivered to
// POST /ingest/{source}.
type IngestResponse struct {
	Source       string   `json:"source"`
	Accepted     int      `json:"accepted"`
	Deduplicated int      `json:"deduplicated"`
	// Recovered counts provider recoveries, which are acknowledged but
	// not turned into alerts.
	Recovered int      `json:"recovered"`
	AlertIDs  []string `json:"alert_ids"`
}

// ========== Pattern Types ==========

// CreatePatternRequest is the request body for POST /api/patterns.
type CreatePatternRequest struct {
	ID              string   `json:"id" validate:"required,max=128"`
	Name            string   `json:"name" validate:"max=255"`
	Description     string   `json:"description" validate:"max=2048"`
	Sequence        []string `json:"sequence" validate:"required,min=1,dive,required,max=255"`
	Severity        string   `json:"severity" validate:"omitempty,severity"`
	Recommendations []string `json:"recommendations"`
}

// ========== Webhook Types ==========

// WebhookRequest is the request body for POST and DELETE /api/webhooks.
type WebhookRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// WebhookListResponse lists the registered webhook URLs.
type WebhookListResponse struct {
	URLs []string `json:"urls"`
}

// ========== Group and Stats Types ==========

// GroupResponse is the API form of a correlation group.
type GroupResponse struct {
	ID          string          `json:"id"`
	AlertIDs    []string        `json:"alert_ids"`
	AlertCount  int             `json:"alert_count"`
	Severity    alerts.Severity `json:"severity"`
	PatternID   string          `json:"pattern_id,omitempty"`
	PatternName string          `json:"pattern_name,omitempty"`
	// Recommendations come from the matched pattern.
	Recommendations []string  `json:"recommendations,omitempty"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
	Resolved        bool      `json:"resolved"`
}

// StatsResponse is the response body for GET /api/stats.
type StatsResponse struct {
	Alerts      services.AlertStatistics `json:"alerts"`
	Correlation correlation.Statistics   `json:"correlation"`
	Channels    []ChannelStatus          `json:"channels"`
}

// ChannelStatus describes a registered notification channel.
type ChannelStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}
