package adapters

import (
	"testing"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

const alertmanagerFiring = `{
	"version": "4",
	"status": "firing",
	"commonAnnotations": {"description": "shared description"},
	"alerts": [
		{
			"status": "firing",
			"labels": {
				"alertname": "BulkExport",
				"severity": "high",
				"instance": "records-db:5432",
				"user": "alice",
				"job": "audit"
			},
			"annotations": {
				"summary": "Bulk access to client records",
				"runbook_url": "https://runbooks.example.com/export"
			},
			"startsAt": "2026-03-01T09:00:00Z",
			"endsAt": "0001-01-01T00:00:00Z",
			"fingerprint": "abc123"
		},
		{
			"status": "resolved",
			"labels": {"alertname": "LoginFailures"},
			"annotations": {},
			"startsAt": "2026-03-01T08:00:00Z",
			"endsAt": "2026-03-01T08:30:00Z",
			"fingerprint": "def456"
		}
	]
}`

func TestAlertmanagerAdapter_Parse(t *testing.T) {
	adapter := NewAlertmanagerAdapter(nil)
	if adapter.Source() != "alertmanager" {
		t.Errorf("Source() = %q", adapter.Source())
	}

	subs, err := adapter.Parse([]byte(alertmanagerFiring))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}

	first := subs[0]
	if first.Title != "Bulk access to client records" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Message != "shared description" {
		t.Errorf("Message = %q, want common description", first.Message)
	}
	if first.Severity != alerts.SeverityError {
		t.Errorf("Severity = %q, want error", first.Severity)
	}
	if first.Recovered {
		t.Error("firing alert should not be recovered")
	}
	wantMeta := map[string]string{
		alerts.MetaResource: "records-db:5432",
		alerts.MetaUserID:   "alice",
		"job":               "audit",
		"fingerprint":       "abc123",
		"runbookUrl":        "https://runbooks.example.com/export",
		"source":            "alertmanager",
		"alertname":         "BulkExport",
	}
	for k, v := range wantMeta {
		if got := first.Metadata.String(k); got != v {
			t.Errorf("Metadata[%q] = %q, want %q", k, got, v)
		}
	}
	if _, ok := first.Metadata[alerts.MetaIPAddress]; ok {
		t.Error("absent labels should not produce metadata")
	}

	second := subs[1]
	if second.Title != "LoginFailures" {
		t.Errorf("Title = %q, want alertname fallback", second.Title)
	}
	if second.Severity != alerts.SeverityWarning {
		t.Errorf("missing severity should default to warning, got %q", second.Severity)
	}
	if !second.Recovered {
		t.Error("resolved alert should be marked recovered")
	}
}

func TestAlertmanagerAdapter_MappingOverride(t *testing.T) {
	adapter := NewAlertmanagerAdapter(alerts.FieldMapping{alerts.MetaResource: "labels.job"})
	subs, err := adapter.Parse([]byte(alertmanagerFiring))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := subs[0].Metadata.String(alerts.MetaResource); got != "audit" {
		t.Errorf("resource = %q, want override value", got)
	}
}

func TestAlertmanagerAdapter_InvalidJSON(t *testing.T) {
	if _, err := NewAlertmanagerAdapter(nil).Parse([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestAlertmanagerAdapter_EmptyPayload(t *testing.T) {
	subs, err := NewAlertmanagerAdapter(nil).Parse([]byte(`{"alerts": []}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expected no submissions, got %d", len(subs))
	}
}
