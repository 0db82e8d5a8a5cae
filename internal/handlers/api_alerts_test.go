package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/database"
)

func TestCreateAlert(t *testing.T) {
	f := newAPIFixture(t, nil, false)
	body := map[string]interface{}{
		"severity": "high",
		"title":    "Unauthorized access",
		"message":  "case 42 opened",
		"metadata": map[string]interface{}{"userId": "u-1"},
	}

	var first api.CreateAlertResponse
	f.do(t, http.MethodPost, "/api/alerts", body).AssertStatus(http.StatusCreated).DecodeJSON(&first)
	require.NotNil(t, first.Alert)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, alerts.SeverityError, first.Alert.Severity)
	assert.Equal(t, "u-1", first.Alert.Metadata.String(alerts.MetaUserID))

	var second api.CreateAlertResponse
	f.do(t, http.MethodPost, "/api/alerts", body).AssertStatus(http.StatusOK).DecodeJSON(&second)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Alert.ID, second.Alert.ID)
	assert.Len(t, f.manager.GetAlerts(), 1)
}

func TestCreateAlert_Validation(t *testing.T) {
	f := newAPIFixture(t, nil, false)

	f.do(t, http.MethodPost, "/api/alerts", map[string]string{"severity": "loud", "title": "x"}).
		AssertStatus(http.StatusUnprocessableEntity).
		AssertBodyContains(`"severity"`)

	f.do(t, http.MethodPost, "/api/alerts", map[string]string{"severity": "info"}).
		AssertStatus(http.StatusUnprocessableEntity).
		AssertBodyContains(`"title":"is required"`)

	f.do(t, http.MethodPost, "/api/alerts", map[string]string{"severity": "info", "title": "x", "colour": "red"}).
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("invalid_body")

	assert.Empty(t, f.manager.GetAlerts())
}

func TestCreateAlert_StripsControlCharacters(t *testing.T) {
	f := newAPIFixture(t, nil, false)

	var resp api.CreateAlertResponse
	f.do(t, http.MethodPost, "/api/alerts", map[string]string{"severity": "info", "title": "Back\x00up\x07 done"}).
		AssertStatus(http.StatusCreated).
		DecodeJSON(&resp)
	assert.Equal(t, "Backup done", resp.Alert.Title)
}

func TestListAlerts(t *testing.T) {
	f := newAPIFixture(t, nil, false)
	ctx := t.Context()
	crit := f.manager.CreateAlert(ctx, alerts.SeverityCritical, "Breach", "db", nil)
	f.manager.CreateAlert(ctx, alerts.SeverityInfo, "Backup", "ok", nil)
	f.manager.ResolveAlert(ctx, crit.ID)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "all", query: "", want: 2},
		{name: "explicit all", query: "?status=all", want: 2},
		{name: "active", query: "?status=active", want: 1},
		{name: "resolved", query: "?status=resolved", want: 1},
		{name: "severity", query: "?severity=critical", want: 1},
		{name: "severity alias", query: "?severity=p1&status=active", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list []*alerts.Alert
			f.do(t, http.MethodGet, "/api/alerts"+tt.query, nil).AssertStatus(http.StatusOK).DecodeJSON(&list)
			assert.Len(t, list, tt.want)
		})
	}

	f.do(t, http.MethodGet, "/api/alerts?status=sleeping", nil).AssertStatus(http.StatusBadRequest)
	f.do(t, http.MethodGet, "/api/alerts?severity=loud", nil).AssertStatus(http.StatusBadRequest)
}

func TestGetAndResolveAlert(t *testing.T) {
	f := newAPIFixture(t, nil, false)
	alert := f.manager.CreateAlert(t.Context(), alerts.SeverityWarning, "Login failed", "alice", nil)

	var got alerts.Alert
	f.do(t, http.MethodGet, "/api/alerts/"+alert.ID, nil).AssertStatus(http.StatusOK).DecodeJSON(&got)
	assert.Equal(t, alert.ID, got.ID)

	f.do(t, http.MethodGet, "/api/alerts/missing", nil).
		AssertStatus(http.StatusNotFound).
		AssertBodyContains("not_found")

	var resolved alerts.Alert
	f.do(t, http.MethodPost, "/api/alerts/"+alert.ID+"/resolve", nil).AssertStatus(http.StatusOK).DecodeJSON(&resolved)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)

	f.do(t, http.MethodPost, "/api/alerts/missing/resolve", nil).AssertStatus(http.StatusNotFound)
}

func TestAlertHistory(t *testing.T) {
	t.Run("archive disabled", func(t *testing.T) {
		f := newAPIFixture(t, nil, false)
		f.do(t, http.MethodGet, "/api/alerts/history", nil).
			AssertStatus(http.StatusServiceUnavailable).
			AssertBodyContains("archive_disabled")
	})

	t.Run("pages through the archive", func(t *testing.T) {
		history := &fakeHistory{
			records: []database.AlertRecord{{ID: "a-3", Severity: "error", Title: "Export"}},
			total:   21,
		}
		f := newAPIFixture(t, history, false)

		var resp struct {
			Data       []*alerts.Alert    `json:"data"`
			Pagination api.PaginationMeta `json:"pagination"`
		}
		f.do(t, http.MethodGet, "/api/alerts/history?severity=high&status=resolved&since=2026-03-01T00:00:00Z&page=3&per_page=10", nil).
			AssertStatus(http.StatusOK).
			DecodeJSON(&resp)

		require.Len(t, resp.Data, 1)
		assert.Equal(t, "a-3", resp.Data[0].ID)
		assert.Equal(t, 3, resp.Pagination.TotalPages)

		assert.Equal(t, alerts.SeverityError, history.filter.Severity)
		assert.Equal(t, database.StatusResolved, history.filter.Status)
		assert.Equal(t, 10, history.filter.Limit)
		assert.Equal(t, 20, history.filter.Offset)
		assert.Equal(t, 2026, history.filter.Since.Year())
	})

	t.Run("bad parameters", func(t *testing.T) {
		f := newAPIFixture(t, &fakeHistory{}, false)
		f.do(t, http.MethodGet, "/api/alerts/history?since=yesterday", nil).AssertStatus(http.StatusBadRequest)
		f.do(t, http.MethodGet, "/api/alerts/history?status=maybe", nil).AssertStatus(http.StatusBadRequest)
	})

	t.Run("archive failure", func(t *testing.T) {
		f := newAPIFixture(t, &fakeHistory{err: errors.New("connection refused")}, false)
		f.do(t, http.MethodGet, "/api/alerts/history", nil).AssertStatus(http.StatusInternalServerError)
	})
}
