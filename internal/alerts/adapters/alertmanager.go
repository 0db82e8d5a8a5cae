// Package adapters translates monitoring provider webhooks into alert
// submissions.
package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// AlertmanagerAdapter handles Prometheus Alertmanager webhooks
type AlertmanagerAdapter struct {
	mapping alerts.FieldMapping
}

// NewAlertmanagerAdapter creates the adapter. overrides replace entries of
// the default label mapping.
func NewAlertmanagerAdapter(overrides alerts.FieldMapping) *AlertmanagerAdapter {
	return &AlertmanagerAdapter{mapping: alerts.MergeMappings(alertmanagerMapping, overrides)}
}

var alertmanagerMapping = alerts.FieldMapping{
	alerts.MetaResource:  "labels.instance",
	alerts.MetaUserID:    "labels.user",
	alerts.MetaIPAddress: "labels.source_ip",
	"job":                "labels.job",
	"fingerprint":        "fingerprint",
	"runbookUrl":         "annotations.runbook_url",
}

// AlertmanagerPayload is the webhook payload from Alertmanager
type AlertmanagerPayload struct {
	Alerts            []AlertmanagerAlert `json:"alerts"`
	Status            string              `json:"status"`
	GroupLabels       map[string]string   `json:"groupLabels"`
	CommonLabels      map[string]string   `json:"commonLabels"`
	CommonAnnotations map[string]string   `json:"commonAnnotations"`
	ExternalURL       string              `json:"externalURL"`
	Version           string              `json:"version"`
	GroupKey          string              `json:"groupKey"`
}

// AlertmanagerAlert is a single alert in the payload
type AlertmanagerAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// Source implements alerts.Adapter
func (a *AlertmanagerAdapter) Source() string { return "alertmanager" }

// Parse implements alerts.Adapter
func (a *AlertmanagerAdapter) Parse(body []byte) ([]alerts.Submission, error) {
	var payload AlertmanagerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse alertmanager payload: %w", err)
	}

	out := make([]alerts.Submission, 0, len(payload.Alerts))
	for _, alert := range payload.Alerts {
		out = append(out, a.parseAlert(alert, payload.CommonAnnotations))
	}
	return out, nil
}

func (a *AlertmanagerAdapter) parseAlert(alert AlertmanagerAlert, common map[string]string) alerts.Submission {
	fields := map[string]any{
		"status":       alert.Status,
		"labels":       alert.Labels,
		"annotations":  alert.Annotations,
		"generatorURL": alert.GeneratorURL,
		"fingerprint":  alert.Fingerprint,
	}

	title := alert.Annotations["summary"]
	if title == "" {
		title = alert.Labels["alertname"]
	}
	if title == "" {
		title = common["summary"]
	}
	if title == "" {
		title = "Alertmanager alert"
	}

	message := alert.Annotations["description"]
	if message == "" {
		message = common["description"]
	}

	meta := alerts.ApplyMapping(fields, a.mapping)
	meta["source"] = a.Source()
	if name := alert.Labels["alertname"]; name != "" {
		meta["alertname"] = name
	}

	return alerts.Submission{
		Severity:  alerts.NormalizeSeverity(alert.Labels["severity"]),
		Title:     title,
		Message:   message,
		Metadata:  meta,
		Recovered: alerts.IsRecoveryStatus(alert.Status),
	}
}
