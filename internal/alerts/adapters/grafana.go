package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// GrafanaAdapter handles Grafana alerting webhooks, both unified and
// legacy formats
type GrafanaAdapter struct {
	mapping alerts.FieldMapping
}

// NewGrafanaAdapter creates the adapter. overrides replace entries of the
// default label mapping.
func NewGrafanaAdapter(overrides alerts.FieldMapping) *GrafanaAdapter {
	return &GrafanaAdapter{mapping: alerts.MergeMappings(grafanaMapping, overrides)}
}

var grafanaMapping = alerts.FieldMapping{
	alerts.MetaResource:  "labels.instance",
	alerts.MetaUserID:    "labels.user",
	alerts.MetaIPAddress: "labels.source_ip",
	"fingerprint":        "fingerprint",
	"runbookUrl":         "annotations.runbook_url",
}

// GrafanaPayload is the webhook payload from Grafana
type GrafanaPayload struct {
	// Unified alerting
	Receiver string         `json:"receiver"`
	Status   string         `json:"status"`
	Alerts   []GrafanaAlert `json:"alerts"`

	// Legacy alerting
	RuleName    string `json:"ruleName"`
	State       string `json:"state"`
	Message     string `json:"message"`
	RuleURL     string `json:"ruleUrl"`
	RuleID      int    `json:"ruleId"`
	Title       string `json:"title"`
	EvalMatches []struct {
		Value  float64           `json:"value"`
		Metric string            `json:"metric"`
		Tags   map[string]string `json:"tags"`
	} `json:"evalMatches"`
}

// GrafanaAlert is a single alert in unified alerting
type GrafanaAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	Fingerprint  string            `json:"fingerprint"`
	GeneratorURL string            `json:"generatorURL"`
}

// Source implements alerts.Adapter
func (a *GrafanaAdapter) Source() string { return "grafana" }

// Parse implements alerts.Adapter
func (a *GrafanaAdapter) Parse(body []byte) ([]alerts.Submission, error) {
	var payload GrafanaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse grafana payload: %w", err)
	}

	if len(payload.Alerts) == 0 {
		return []alerts.Submission{a.parseLegacy(payload)}, nil
	}
	out := make([]alerts.Submission, 0, len(payload.Alerts))
	for _, alert := range payload.Alerts {
		out = append(out, a.parseUnified(alert))
	}
	return out, nil
}

func (a *GrafanaAdapter) parseUnified(alert GrafanaAlert) alerts.Submission {
	fields := map[string]any{
		"labels":      alert.Labels,
		"annotations": alert.Annotations,
		"fingerprint": alert.Fingerprint,
	}

	title := alert.Annotations["summary"]
	if title == "" {
		title = alert.Labels["alertname"]
	}
	if title == "" {
		title = "Grafana alert"
	}

	meta := alerts.ApplyMapping(fields, a.mapping)
	meta["source"] = a.Source()

	return alerts.Submission{
		Severity:  alerts.NormalizeSeverity(alert.Labels["severity"]),
		Title:     title,
		Message:   alert.Annotations["description"],
		Metadata:  meta,
		Recovered: alerts.IsRecoveryStatus(alert.Status),
	}
}

func (a *GrafanaAdapter) parseLegacy(payload GrafanaPayload) alerts.Submission {
	title := payload.RuleName
	if title == "" {
		title = payload.Title
	}
	if title == "" {
		title = "Grafana alert"
	}

	meta := alerts.Metadata{"source": a.Source()}
	if payload.RuleID != 0 {
		meta["ruleId"] = strconv.Itoa(payload.RuleID)
	}
	if len(payload.EvalMatches) > 0 {
		if instance := payload.EvalMatches[0].Tags["instance"]; instance != "" {
			meta[alerts.MetaResource] = instance
		}
	}

	state := strings.ToLower(payload.State)
	return alerts.Submission{
		Severity:  legacyStateSeverity(state),
		Title:     title,
		Message:   payload.Message,
		Metadata:  meta,
		Recovered: state == "ok" || state == "paused",
	}
}

// legacyStateSeverity maps a legacy Grafana state to a severity
func legacyStateSeverity(state string) alerts.Severity {
	switch state {
	case "alerting":
		return alerts.SeverityCritical
	case "no_data", "ok", "paused":
		return alerts.SeverityInfo
	default:
		return alerts.SeverityWarning
	}
}
