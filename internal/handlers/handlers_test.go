package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/channels"
	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/database"
	"github.com/lexwatch/lexwatch/internal/services"
	"github.com/lexwatch/lexwatch/internal/testhelpers"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeHistory struct {
	records []database.AlertRecord
	total   int64
	err     error
	filter  database.AlertFilter
}

func (f *fakeHistory) ListAlerts(ctx context.Context, filter database.AlertFilter) ([]database.AlertRecord, int64, error) {
	f.filter = filter
	return f.records, f.total, f.err
}

type apiFixture struct {
	manager *services.AlertManager
	clock   *testhelpers.FakeClock
	webhook *channels.WebhookChannel
	mux     *http.ServeMux
}

func newAPIFixture(t *testing.T, history AlertHistory, withWebhook bool) *apiFixture {
	t.Helper()
	cfg := &config.Config{
		AlertDeduplicationWindow: 5 * time.Minute,
		CorrelationEnabled:       true,
		CorrelationWindow:        5 * time.Minute,
		NotifyMinSeverity:        alerts.SeverityInfo,
		ChannelTimeout:           time.Second,
	}
	clock := testhelpers.NewFakeClock(testStart)
	opts := []services.ManagerOption{services.WithClock(clock.Now)}

	var webhook *channels.WebhookChannel
	if withWebhook {
		webhook = channels.NewWebhookChannel(zap.NewNop(), channels.WebhookConfig{})
		opts = append(opts, services.WithChannels(webhook))
	}
	manager := services.NewAlertManager(cfg, zap.NewNop(), opts...)
	t.Cleanup(manager.Close)

	mux := http.NewServeMux()
	NewAPIHandler(manager, history, zap.NewNop()).SetupRoutes(mux)
	return &apiFixture{manager: manager, clock: clock, webhook: webhook, mux: mux}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *testhelpers.HTTPTestContext {
	t.Helper()
	ctx := testhelpers.NewHTTPTestContext(t, method, path, nil)
	if body != nil {
		ctx = ctx.WithJSONBody(body)
	}
	return ctx.Execute(f.mux)
}
