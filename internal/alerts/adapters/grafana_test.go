package adapters

import (
	"testing"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

func TestGrafanaAdapter_ParseUnified(t *testing.T) {
	payload := `{
		"receiver": "lexwatch",
		"status": "firing",
		"alerts": [{
			"status": "firing",
			"labels": {"alertname": "AdminLogin", "severity": "critical", "source_ip": "203.0.113.7"},
			"annotations": {"description": "admin console login from new network"},
			"fingerprint": "f-1"
		}]
	}`

	subs, err := NewGrafanaAdapter(nil).Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
	s := subs[0]
	if s.Title != "AdminLogin" || s.Severity != alerts.SeverityCritical {
		t.Errorf("unexpected submission %+v", s)
	}
	if s.Message != "admin console login from new network" {
		t.Errorf("Message = %q", s.Message)
	}
	if got := s.Metadata.String(alerts.MetaIPAddress); got != "203.0.113.7" {
		t.Errorf("ipAddress = %q", got)
	}
	if s.Metadata.String("source") != "grafana" {
		t.Errorf("source = %q", s.Metadata.String("source"))
	}
}

func TestGrafanaAdapter_ParseLegacy(t *testing.T) {
	tests := []struct {
		name          string
		state         string
		wantSeverity  alerts.Severity
		wantRecovered bool
	}{
		{name: "alerting", state: "alerting", wantSeverity: alerts.SeverityCritical},
		{name: "pending", state: "pending", wantSeverity: alerts.SeverityWarning},
		{name: "no data", state: "no_data", wantSeverity: alerts.SeverityInfo},
		{name: "ok", state: "ok", wantSeverity: alerts.SeverityInfo, wantRecovered: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"ruleName": "Export volume", "ruleId": 7, "state": "` + tt.state + `", "message": "exports above baseline",
				"evalMatches": [{"value": 120, "metric": "exports", "tags": {"instance": "records-api"}}]}`

			subs, err := NewGrafanaAdapter(nil).Parse([]byte(payload))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if len(subs) != 1 {
				t.Fatalf("expected 1 submission, got %d", len(subs))
			}
			s := subs[0]
			if s.Severity != tt.wantSeverity {
				t.Errorf("Severity = %q, want %q", s.Severity, tt.wantSeverity)
			}
			if s.Recovered != tt.wantRecovered {
				t.Errorf("Recovered = %v, want %v", s.Recovered, tt.wantRecovered)
			}
			if s.Title != "Export volume" || s.Metadata.String(alerts.MetaResource) != "records-api" {
				t.Errorf("unexpected submission %+v", s)
			}
			if s.Metadata.String("ruleId") != "7" {
				t.Errorf("ruleId = %q", s.Metadata.String("ruleId"))
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := Default()
	if got := r.Sources(); len(got) != 2 || got[0] != "alertmanager" || got[1] != "grafana" {
		t.Errorf("Sources() = %v", got)
	}
	if _, ok := r.Get("grafana"); !ok {
		t.Error("grafana adapter should be registered")
	}
	if _, ok := r.Get("zabbix"); ok {
		t.Error("unknown source should not resolve")
	}
}
